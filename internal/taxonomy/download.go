package taxonomy

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/brocc/pkg/utils"
)

// DefaultDumpURL is the NCBI taxonomy FTP tree served over HTTPS.
const DefaultDumpURL = "https://ftp.ncbi.nlm.nih.gov/pub/taxonomy"

const (
	taxdumpFile   = "taxdump.tar.gz"
	accessionFile = "nucl_gb.accession2taxid.gz"
)

// Downloader fetches the NCBI dump files needed by Import.
type Downloader struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

// Download fetches the taxonomy dump and the nucleotide accession table into
// dir, skipping files already present, and extracts names.dmp and nodes.dmp.
func (d *Downloader) Download(ctx context.Context, dir string) (ImportFiles, error) {
	base := d.BaseURL
	if base == "" {
		base = DefaultDumpURL
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	files := ImportFiles{
		Names:          filepath.Join(dir, "names.dmp"),
		Nodes:          filepath.Join(dir, "nodes.dmp"),
		AccessionTaxID: filepath.Join(dir, accessionFile),
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return files, fmt.Errorf("failed to create download directory: %w", err)
	}

	if !exists(files.AccessionTaxID) {
		logger.Info("downloading", zap.String("file", accessionFile))
		if err := fetch(ctx, client, base+"/accession2taxid/"+accessionFile, files.AccessionTaxID); err != nil {
			return files, err
		}
	}

	if exists(files.Names) && exists(files.Nodes) {
		return files, nil
	}
	dump := filepath.Join(dir, taxdumpFile)
	if !exists(dump) {
		logger.Info("downloading", zap.String("file", taxdumpFile))
		if err := fetch(ctx, client, base+"/"+taxdumpFile, dump); err != nil {
			return files, err
		}
	}
	if err := extractDump(dump, dir, "names.dmp", "nodes.dmp"); err != nil {
		return files, fmt.Errorf("failed to extract %s: %w", taxdumpFile, err)
	}
	return files, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fetch downloads url to dest through a temporary file.
func fetch(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: %s", url, resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// extractDump copies the named members of a .tar.gz archive into dir.
func extractDump(archive, dir string, members ...string) error {
	f, err := utils.OpenFile(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	want := make(map[string]bool, len(members))
	for _, m := range members {
		want[m] = true
	}
	tr := tar.NewReader(f)
	for len(want) > 0 {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		name := filepath.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !want[name] {
			continue
		}
		out, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		delete(want, name)
	}
	if len(want) > 0 {
		return fmt.Errorf("archive is missing %d member(s)", len(want))
	}
	return nil
}
