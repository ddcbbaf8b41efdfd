package internal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sensiblebit/sslchains"
	"github.com/sensiblebit/sslchains/internal/chain"
	"gopkg.in/yaml.v3"
)

// UnknownName is shown for chains with nothing to derive a name from.
const UnknownName = "(unknown)"

// ReportFormats lists the accepted values of ReportInput.Format.
var ReportFormats = []string{"tree", "oneline", "table", "json", "yaml"}

// ReportInput holds the options for FormatChains.
type ReportInput struct {
	Format string
	// NoHeader suppresses the header line of the oneline format.
	NoHeader bool
	// Color highlights the tree format with ANSI colors.
	Color bool
}

// DisplayName returns the name a chain is listed under: the first DNS SAN
// of the first certificate that does not start with "www.", else its first
// SAN when that is a DNS name, else its common name, else the request's
// common name. Common names spanning several lines contribute only their
// last line.
func DisplayName(c *chain.Chain) string {
	if len(c.Certificates) > 0 {
		cert := c.Certificates[0].Certificate
		sans := sslchains.SubjectAlternativeNames(cert)
		for _, name := range sans {
			if !strings.HasPrefix(name, "www.") {
				return name
			}
		}
		if len(sans) > 0 && sslchains.FirstAlternativeNameIsDNS(cert) {
			return sans[0]
		}
		if cn := sslchains.CommonName(cert.Subject); cn != "" {
			return cn
		}
	}
	if c.Request != nil {
		if cn := sslchains.CommonName(c.Request.Request.Subject); cn != "" {
			return cn
		}
	}
	return UnknownName
}

// FormatChains renders chains in the requested format.
func FormatChains(chains []*chain.Chain, input ReportInput) (string, error) {
	switch input.Format {
	case "", "tree":
		return formatTree(chains, newTreeStyle(input.Color)), nil
	case "oneline":
		return formatOneline(chains, input.NoHeader), nil
	case "table":
		return formatTable(chains)
	case "json":
		data, err := json.MarshalIndent(chainReports(chains), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(chainReports(chains))
		if err != nil {
			return "", fmt.Errorf("marshaling YAML: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use %s)", input.Format, strings.Join(ReportFormats, ", "))
	}
}

type treeStyle struct {
	name, marker, selfSigned, missing *color.Color
}

func newTreeStyle(enabled bool) treeStyle {
	s := treeStyle{
		name:       color.New(color.Bold),
		marker:     color.New(color.FgCyan),
		selfSigned: color.New(color.FgYellow),
		missing:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.name, s.marker, s.selfSigned, s.missing} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// formatTree renders each chain as an indented tree. Every issuer line is
// indented two more spaces than the line it signed.
func formatTree(chains []*chain.Chain, style treeStyle) string {
	var sb strings.Builder
	for _, c := range chains {
		fmt.Fprintln(&sb, style.name.Sprint(DisplayName(c)))
		fmt.Fprintf(&sb, "  %s Key: %s\n", style.marker.Sprint("*"), c.Key.Path)

		request := style.missing.Sprint("n/a")
		if c.Request != nil {
			request = c.Request.Path
		}
		fmt.Fprintf(&sb, "  %s CSR: %s\n", style.marker.Sprint("*"), request)

		if len(c.Certificates) == 0 {
			fmt.Fprintf(&sb, "  %s Certificates: %s\n", style.marker.Sprint("*"), style.missing.Sprint("n/a"))
			continue
		}
		fmt.Fprintf(&sb, "  %s Certificates:\n", style.marker.Sprint("*"))
		for _, record := range c.Certificates {
			indent := 4
			fmt.Fprintf(&sb, "%s%s %s", strings.Repeat(" ", indent), style.marker.Sprint("-"), record.Path)
			if record.SelfSigned {
				fmt.Fprintf(&sb, " %s", style.selfSigned.Sprint("(self-signed)"))
			}
			sb.WriteString("\n")
			for _, issuer := range record.Lineage() {
				indent += 2
				fmt.Fprintf(&sb, "%s%s %s\n", strings.Repeat(" ", indent), style.marker.Sprint(">"), issuer.Path)
			}
		}
	}
	return sb.String()
}

// formatOneline renders one line per chain: name, key, request ("-" when
// absent) and each certificate followed by its issuers joined with "|".
func formatOneline(chains []*chain.Chain, noHeader bool) string {
	var sb strings.Builder
	if !noHeader {
		sb.WriteString("name key request certificate_chain\n")
	}
	for _, c := range chains {
		request := "-"
		if c.Request != nil {
			request = c.Request.Path
		}
		fmt.Fprintf(&sb, "%s %s %s", DisplayName(c), c.Key.Path, request)
		if len(c.Certificates) == 0 {
			sb.WriteString(" -\n")
			continue
		}
		for _, record := range c.Certificates {
			sb.WriteString(" " + strings.Join(lineageCells(record), "|"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// lineageCells returns the certificate path followed by its issuers, or by
// "(self-signed)" when it signed itself.
func lineageCells(record *chain.CertificateRecord) []string {
	cells := []string{record.Path}
	if record.SelfSigned {
		return append(cells, "(self-signed)")
	}
	for _, issuer := range record.Lineage() {
		cells = append(cells, issuer.Path)
	}
	return cells
}

// formatTable renders a markdown table with one row per certificate, or a
// single row for chains without certificates.
func formatTable(chains []*chain.Chain) (string, error) {
	var rows [][]string
	for _, c := range chains {
		name := DisplayName(c)
		request := "-"
		if c.Request != nil {
			request = c.Request.Path
		}
		if len(c.Certificates) == 0 {
			rows = append(rows, []string{name, c.Key.Path, request, "-", "-"})
			continue
		}
		for _, record := range c.Certificates {
			lineage := lineageCells(record)[1:]
			issuers := "-"
			if len(lineage) > 0 {
				issuers = strings.Join(lineage, " > ")
			}
			rows = append(rows, []string{name, c.Key.Path, request, record.Path, issuers})
		}
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: false})),
	)
	table.Header([]string{"Name", "Key", "Request", "Certificate", "Issuers"})
	if err := table.Bulk(rows); err != nil {
		return "", fmt.Errorf("building table: %w", err)
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}
	return buf.String(), nil
}

// chainReport is the structured form of a chain used by JSON and YAML output.
type chainReport struct {
	Name         string              `json:"name" yaml:"name"`
	Key          string              `json:"key" yaml:"key"`
	Request      string              `json:"request,omitempty" yaml:"request,omitempty"`
	Certificates []certificateReport `json:"certificates" yaml:"certificates"`
}

type certificateReport struct {
	Path       string   `json:"path" yaml:"path"`
	Subject    string   `json:"subject" yaml:"subject"`
	SelfSigned bool     `json:"self_signed" yaml:"self_signed"`
	Issuers    []string `json:"issuers" yaml:"issuers"`
}

func chainReports(chains []*chain.Chain) []chainReport {
	reports := make([]chainReport, 0, len(chains))
	for _, c := range chains {
		r := chainReport{
			Name:         DisplayName(c),
			Key:          c.Key.Path,
			Certificates: []certificateReport{},
		}
		if c.Request != nil {
			r.Request = c.Request.Path
		}
		for _, record := range c.Certificates {
			issuers := []string{}
			for _, issuer := range record.Lineage() {
				issuers = append(issuers, issuer.Path)
			}
			r.Certificates = append(r.Certificates, certificateReport{
				Path:       record.Path,
				Subject:    record.Certificate.Subject.String(),
				SelfSigned: record.SelfSigned,
				Issuers:    issuers,
			})
		}
		reports = append(reports, r)
	}
	return reports
}
