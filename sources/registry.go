package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/models"
)

const registryFileName = "cdi_admitted_insurers.pdf"

// registryLineRe splits "<COMPANY NAME> <4-6 digit registry code>" lines.
var registryLineRe = regexp.MustCompile(`^(.+?)\s+(\d{4,6})\s*$`)

// registrySkipPhrases marks header and footer lines in the extracted text.
var registrySkipPhrases = []string{
	"ADMITTED INSURERS", "COMPANY NAME", "PAGE ", "STATE OF",
	"SUBJECT TO", "NAIC NUMBER", "IRI-", "SUPPLEMENTAL",
}

// RegistryConnector downloads the state registry PDF once and parses one
// insurer per line. Text extraction relies on the external pdftotext tool;
// without it the connector degrades to download-only.
type RegistryConnector struct {
	cfg     *config.Config
	fetcher *browser.Fetcher
}

// NewRegistryConnector creates the registry-document connector.
func NewRegistryConnector(cfg *config.Config, f *browser.Fetcher) *RegistryConnector {
	return &RegistryConnector{cfg: cfg, fetcher: f}
}

func (c *RegistryConnector) ID() string    { return "cdi" }
func (c *RegistryConnector) Label() string { return "CDI Admitted Insurers" }

// Fetch downloads the registry document, persists it to the output dir,
// and parses it when pdftotext is available.
func (c *RegistryConnector) Fetch(ctx context.Context) ([]*models.Record, error) {
	dlCtx, cancel := context.WithTimeout(ctx, c.cfg.Registry.Timeout)
	defer cancel()

	status, body, err := c.fetcher.Get(dlCtx, c.cfg.Registry.URL)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeFetch, "registry download failed", err)
	}
	if status != http.StatusOK {
		return nil, models.NewPipelineError(models.ErrCodeFetch,
			fmt.Sprintf("registry download returned HTTP %d", status), nil)
	}

	// Persist the raw document regardless of whether we can parse it.
	if err := os.MkdirAll(c.cfg.Output.Dir, 0o755); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeInternal, "create output dir", err)
	}
	pdfPath := filepath.Join(c.cfg.Output.Dir, registryFileName)
	if err := os.WriteFile(pdfPath, body, 0o644); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeInternal, "persist registry document", err)
	}
	slog.Info("registry document downloaded", "path", pdfPath, "kb", len(body)/1024)

	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		slog.Warn("pdftotext not found, registry saved for manual review",
			"path", pdfPath, "hint", "install poppler-utils to enable parsing")
		return nil, nil
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-layout", pdfPath, "-")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeParse, "pdftotext failed", err)
	}

	records := ParseRegistryText(out.String(), c.cfg.Region.State, c.cfg.Registry.URL)
	slog.Info("registry parsed", "records", len(records))
	return records, nil
}

// ParseRegistryText parses one insurer per non-header line of extracted
// registry text. The trailing 4-6 digit code is the NAIC identifier.
func ParseRegistryText(text, state, sourceURL string) []*models.Record {
	var records []*models.Record

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) < 5 {
			continue
		}
		if isRegistryHeader(line) {
			continue
		}

		name := line
		code := ""
		if m := registryLineRe.FindStringSubmatch(line); m != nil {
			name = strings.TrimSpace(m[1])
			code = m[2]
		}
		if len(name) < 4 {
			continue
		}

		categories := ""
		if code != "" {
			categories = "NAIC: " + code
		}

		records = append(records, &models.Record{
			Name:       name,
			State:      state,
			Categories: categories,
			Source:     "CDI Admitted Insurers",
			SourceURL:  sourceURL,
		})
	}

	return records
}

func isRegistryHeader(line string) bool {
	upper := strings.ToUpper(line)
	for _, phrase := range registrySkipPhrases {
		if strings.Contains(upper, phrase) {
			return true
		}
	}
	return false
}
