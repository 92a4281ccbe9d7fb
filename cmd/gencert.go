package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/initca"
	cfssllog "github.com/cloudflare/cfssl/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CmdGenCert implements "gencert": a throwaway self-signed certificate
// generator for exercising pkg/x509grammar and certview.VerifySignedBy
// offline, against a certificate whose signature is known to be valid,
// without reaching out to a real server. Grounded on the CA-signing path
// in pkg/agent/proxy/tls/ca.go (which builds a csr.CertificateRequest and
// signs it via cfssl's local signer), generalized here to initca.New,
// cfssl's self-signing entry point, since this command mints a
// standalone leaf rather than signing under an embedded proxy CA.
type CmdGenCert struct {
	v *viper.Viper
}

func NewCmdGenCert(v *viper.Viper) *CmdGenCert { return &CmdGenCert{v: v} }

func (c *CmdGenCert) GetCmd(getLogger func() *zap.Logger) *cobra.Command {
	var host, outDir string

	gencertCmd := &cobra.Command{
		Use:   "gencert",
		Short: "Generate a throwaway self-signed certificate for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenCert(getLogger(), host, outDir)
		},
	}
	gencertCmd.Flags().StringVar(&host, "host", "localhost", "subject CN / SAN hostname")
	gencertCmd.Flags().StringVar(&outDir, "out", ".", "output directory for cert.pem and key.pem")
	return gencertCmd
}

func runGenCert(logger *zap.Logger, host, outDir string) error {
	cfssllog.Level = cfssllog.LevelError

	req := &csr.CertificateRequest{
		CN:         host,
		Hosts:      []string{host},
		KeyRequest: csr.NewKeyRequest(),
	}

	certPEM, _, keyPEM, err := initca.New(req)
	if err != nil {
		return fmt.Errorf("failed to self-sign certificate: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	certPath := filepath.Join(outDir, "cert.pem")
	keyPath := filepath.Join(outDir, "key.pem")
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write cert.pem: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write key.pem: %w", err)
	}

	if logger != nil {
		logger.Info("generated self-signed certificate", zap.String("host", host), zap.String("cert", certPath))
	}
	fmt.Printf("wrote %s and %s\n", certPath, keyPath)
	return nil
}
