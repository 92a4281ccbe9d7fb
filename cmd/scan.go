package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tlssak/scanner/config"
	"github.com/tlssak/scanner/pkg/certstore"
	"github.com/tlssak/scanner/pkg/certview"
	"github.com/tlssak/scanner/pkg/ratings"
	"github.com/tlssak/scanner/pkg/registry"
	"github.com/tlssak/scanner/pkg/scanner"
	"github.com/tlssak/scanner/pkg/tlswire"
	"github.com/tlssak/scanner/pkg/transport"
	"github.com/tlssak/scanner/pkg/transport/starttls"
)

// CmdScan implements the "scan" subcommand.
type CmdScan struct {
	v *viper.Viper
}

func NewCmdScan(v *viper.Viper) *CmdScan { return &CmdScan{v: v} }

func (c *CmdScan) GetCmd(getLogger func() *zap.Logger) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe a server's TLS posture: cipher suites, order honoring, and certificate chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := getLogger()
			cfg := configFromViper(c.v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runScan(cmd.Context(), logger, cfg)
		},
	}
	return scanCmd
}

func configFromViper(v *viper.Viper) config.Config {
	cfg := config.Default()
	cfg.Target = v.GetString("target")
	cfg.Port = uint16(v.GetUint("port"))
	cfg.StartTLS = v.GetString("starttls")
	cfg.Protocol = v.GetString("protocol")
	cfg.ReadTimeout = v.GetDuration("timeout")
	cfg.TrustFile = v.GetStringSlice("trust-store")
	cfg.Debug = v.GetBool("debug")
	cfg.DisableANSI = v.GetBool("disable-ansi")
	return cfg
}

// protocolVersions maps a --protocol flag value to the wire versions the
// scan loop should attempt. "auto" tries every version newest-first so
// the first supported one reported is also the server's best.
func protocolVersions(proto string) ([]uint16, error) {
	switch proto {
	case "", "auto":
		return []uint16{tlswire.VersionTLS13, tlswire.VersionTLS12, tlswire.VersionTLS11, tlswire.VersionTLS10, tlswire.VersionSSL30}, nil
	case "ssl3.0":
		return []uint16{tlswire.VersionSSL30}, nil
	case "tls1.0":
		return []uint16{tlswire.VersionTLS10}, nil
	case "tls1.1":
		return []uint16{tlswire.VersionTLS11}, nil
	case "tls1.2":
		return []uint16{tlswire.VersionTLS12}, nil
	case "tls1.3":
		return []uint16{tlswire.VersionTLS13}, nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", proto)
	}
}

func runScan(ctx context.Context, logger *zap.Logger, cfg config.Config) error {
	// Every line this scan invocation logs through logger carries this
	// id, so interleaved output from overlapping scan runs against
	// different targets can be split back out per run.
	scanID := uuid.New().String()
	if logger != nil {
		logger = logger.With(zap.String("scan_id", scanID))
	}

	versions, err := protocolVersions(cfg.Protocol)
	if err != nil {
		return err
	}

	cipherTable, err := registry.CipherSuites()
	if err != nil {
		return fmt.Errorf("loading cipher suite registry: %w", err)
	}
	compressionTable, err := registry.CompressionMethods()
	if err != nil {
		return fmt.Errorf("loading compression method registry: %w", err)
	}

	allSuites := allCipherSuiteIDs(cipherTable)
	allCompressions := allCompressionIDs(compressionTable)

	var trustStore *certstore.TrustStore
	if len(cfg.TrustFile) > 0 {
		trustStore, err = certstore.Load(cfg.TrustFile...)
		if err != nil {
			return fmt.Errorf("loading trust store: %w", err)
		}
	}

	addr := net.JoinHostPort(cfg.Target, strconv.Itoa(int(cfg.Port)))

	var results []ProtocolResult
	for _, version := range versions {
		dial := makeDialer(ctx, addr, cfg)

		res := ProtocolResult{Version: version}

		suites, err := scanner.EnumerateCipherSuites(dial, version, allSuites, allCompressions)
		if err != nil || len(suites) == 0 {
			res.ConnectErr = err
			results = append(results, res)
			if logger != nil {
				logger.Debug("protocol not supported", zap.String("version", tlswire.VersionName(version)), zap.Error(err))
			}
			continue
		}
		res.Supported = true
		res.CipherSuites = suites

		honor, err := scanner.HonorOrderProbe(dial, version, suites, allCompressions)
		if err != nil && logger != nil {
			logger.Warn("honor-order probe failed", zap.Error(err))
		}
		res.HonorOrder = honor

		fetch, err := scanner.CertificateFetchProbe(dial, version, allSuites, allCompressions, cfg.SNIHost())
		if err != nil && logger != nil {
			logger.Warn("certificate fetch probe failed", zap.Error(err))
		}
		res.Certificates = fetch.Certificates
		if trustStore != nil && len(fetch.Certificates) > 0 {
			res.TrustVerdict = verifyChain(fetch.Certificates, trustStore)
		}
		if scts, err := ratings.ExtractSCTs(fetch.Extensions); err != nil {
			if logger != nil {
				logger.Debug("sct list decode failed", zap.Error(err))
			}
		} else {
			res.SCTs = scts
		}

		results = append(results, res)
	}

	Report(os.Stdout, cfg.Target, results)
	return nil
}

func makeDialer(ctx context.Context, addr string, cfg config.Config) scanner.Dialer {
	return func() (scanner.Transport, error) {
		var resolver *transport.Resolver
		if cfg.Resolver.Server != "" {
			resolver = &transport.Resolver{Server: cfg.Resolver.Server}
		}

		t, err := transport.Dial(ctx, addr, cfg.DialTimeout, cfg.ReadTimeout, resolver)
		if err != nil {
			return nil, err
		}

		if cfg.StartTLS != "" {
			if err := starttls.Upgrade(t, starttls.Protocol(cfg.StartTLS)); err != nil {
				_ = t.Close()
				return nil, err
			}
		}
		return t, nil
	}
}

func allCipherSuiteIDs(table *registry.CipherSuiteTable) []uint16 {
	ids := make([]uint16, 0, len(cipherSuiteIDSeed))
	for _, id := range cipherSuiteIDSeed {
		if _, ok := table.Lookup(id); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func allCompressionIDs(table *registry.CompressionMethodTable) []uint8 {
	ids := make([]uint8, 0, len(compressionIDSeed))
	for _, id := range compressionIDSeed {
		if _, ok := table.Lookup(id); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// cipherSuiteIDSeed/compressionIDSeed are the on-wire IDs offered in a
// ClientHello: every suite/method the embedded registry knows a name for.
// The registry itself has no "list all IDs" accessor (it is keyed for
// point lookups), so the scan command owns the candidate list and asks
// the registry to confirm each ID is one it can describe in the report.
var cipherSuiteIDSeed = []uint16{
	0x0000, 0x0001, 0x0002, 0x0004, 0x0005, 0x000a,
	0x002f, 0x0035, 0x003c, 0x003d,
	0x0033, 0x0039, 0x0067, 0x006b, 0x009c, 0x009d, 0x009e, 0x009f,
	0xc009, 0xc00a, 0xc013, 0xc014, 0xc023, 0xc024, 0xc027, 0xc028,
	0xc02b, 0xc02c, 0xc02f, 0xc030,
	0xcca8, 0xcca9,
	0x1301, 0x1302, 0x1303,
}

var compressionIDSeed = []uint8{0x00, 0x01}

// verifyChain reports whether the leaf's immediate issuer is present in
// trustStore and its signature validates against that issuer's key. It
// only resolves one hop, since certstore.FindIssuer is single-hop by
// design rather than a full chain-building algorithm.
func verifyChain(certs [][]byte, trustStore *certstore.TrustStore) string {
	leaf, err := certview.Parse(certs[0])
	if err != nil {
		return fmt.Sprintf("unparseable leaf: %v", err)
	}
	issuer, found := trustStore.FindIssuer(leaf)
	if !found {
		return "issuer not found in trust store"
	}
	ok, err := leaf.VerifySignedBy(issuer)
	if err != nil {
		return fmt.Sprintf("signature check failed: %v", err)
	}
	if !ok {
		return "signature invalid"
	}
	return "trusted"
}
