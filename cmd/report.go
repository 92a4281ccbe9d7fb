package cmd

// Report rendering: one colored table per scanned protocol version plus a
// certificate summary table, rendered with fatih/color +
// olekukonko/tablewriter. Grounded in shape on
// original_source/lib/plugin/output/stdout.py (one Output_Log_Plugin
// emits the whole run's findings), generalized from its bare print()
// calls into structured tables since this scanner reports
// machine-checked findings rather than a free-form log.

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/tlssak/scanner/pkg/certview"
	"github.com/tlssak/scanner/pkg/ratings"
	"github.com/tlssak/scanner/pkg/registry"
	"github.com/tlssak/scanner/pkg/scanner"
	"github.com/tlssak/scanner/pkg/tlswire"
)

// ProtocolResult is one protocol version's worth of probe results, as
// assembled by runScan.
type ProtocolResult struct {
	Version      uint16
	Supported    bool
	ConnectErr   error
	CipherSuites []uint16
	HonorOrder   scanner.HonorOrderResult
	Certificates [][]byte
	TrustVerdict string
	SCTs         []ratings.SCTSummary
}

// Report renders the full scan to w: one cipher-suite table per supported
// protocol, then a certificate chain summary.
func Report(w io.Writer, target string, results []ProtocolResult) {
	cipherTable, cipherErr := registry.CipherSuites()

	bold := color.New(color.Bold)
	bold.Fprintf(w, "TLS posture scan: %s\n\n", target)

	for _, r := range results {
		fmt.Fprintf(w, "%s\n", tlswire.VersionName(r.Version))
		if !r.Supported {
			reason := "not offered / connection refused"
			if r.ConnectErr != nil {
				reason = r.ConnectErr.Error()
			}
			color.New(color.FgYellow).Fprintf(w, "  unsupported (%s)\n\n", reason)
			continue
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Cipher Suite", "Key Exchange", "Auth", "Encryption", "Bits", "Rating"})
		table.SetHeaderColor(
			tablewriter.Colors{tablewriter.FgHiCyanColor},
			tablewriter.Colors{tablewriter.FgHiCyanColor},
			tablewriter.Colors{tablewriter.FgHiCyanColor},
			tablewriter.Colors{tablewriter.FgHiCyanColor},
			tablewriter.Colors{tablewriter.FgHiCyanColor},
			tablewriter.Colors{tablewriter.FgHiCyanColor},
		)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, id := range r.CipherSuites {
			row := []string{fmt.Sprintf("0x%04x", id), "?", "?", "?", "?", "unknown"}
			if cipherErr == nil {
				if entry, ok := cipherTable.Lookup(id); ok {
					row = []string{entry.Name, entry.KX, entry.AU, entry.ENC, fmt.Sprintf("%d", entry.Bits), ratingLabel(entry)}
				}
			}
			table.Append(row)
		}
		table.Render()

		fmt.Fprintf(w, "  cipher-suite order honored by: %s\n", r.HonorOrder)
		if r.TrustVerdict != "" {
			fmt.Fprintf(w, "  trust chain: %s\n", r.TrustVerdict)
		}
		for _, sct := range r.SCTs {
			fmt.Fprintf(w, "  signed certificate timestamp: log %s at %d\n", sct.LogID, sct.Timestamp)
		}
		fmt.Fprintln(w)
	}

	renderCertificates(w, results)
}

// ratingLabel is a coarse secure/weak verdict derived from the cipher's
// encryption algorithm name, independent of the full ratings.Evaluate
// lint pass (which only applies to the leaf certificate).
func ratingLabel(entry registry.CipherSuiteEntry) string {
	switch entry.ENC {
	case "NULL", "RC4", "DES", "3DES":
		return color.New(color.FgRed).Sprint("insecure")
	case "AES-GCM", "CHACHA20-POLY1305", "AESGCM128", "AESGCM256", "CHACHA20POLY1305":
		return color.New(color.FgGreen).Sprint("secure")
	default:
		return color.New(color.FgYellow).Sprint("weak")
	}
}

func renderCertificates(w io.Writer, results []ProtocolResult) {
	var chain [][]byte
	for _, r := range results {
		if len(r.Certificates) > 0 {
			chain = r.Certificates
			break
		}
	}
	if len(chain) == 0 {
		return
	}

	bold := color.New(color.Bold)
	bold.Fprintln(w, "Certificate chain")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Subject", "Issuer", "Not Before", "Not After", "Hostname Verdict"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, der := range chain {
		cert, err := certview.Parse(der)
		if err != nil {
			table.Append([]string{"<unparseable>", "", "", "", err.Error()})
			continue
		}

		verdict := ratings.HostnameRating(cert)
		table.Append([]string{
			cert.Subject(),
			cert.Issuer(),
			cert.NotBefore().Format("2006-01-02"),
			cert.NotAfter().Format("2006-01-02"),
			fmt.Sprintf("%s (%d)", verdict.Status, verdict.Rating),
		})
	}
	table.Render()
}
