// Package uploader pushes ebook files to the e-paper device's web upload
// endpoint. It is the default workload a switch session runs once the
// device network is up.
package uploader

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/epapersync/epapersync/internal/progress"
	"github.com/epapersync/epapersync/internal/workload"
)

// supportedExtensions are the ebook formats the device accepts.
var supportedExtensions = []string{".epub", ".xtc", ".xtg", ".xth", ".xtch"}

func isSupported(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FindBooks recursively collects supported ebook files under dir. A
// missing directory yields an empty list.
func FindBooks(dir string) ([]string, error) {
	var books []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isSupported(d.Name()) {
			books = append(books, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(books)
	return books, nil
}

// Uploader implements workload.Runner against the device's /edit endpoint.
// The device keeps the directory structure from the texts dir, so files
// are uploaded under their relative paths and the needed folders are
// created first.
type Uploader struct {
	BaseURL   string // e.g. http://192.168.4.1/edit
	TextsDir  string
	KeepFiles bool
	// Delay spaces out uploads so the device's tiny web server keeps up.
	Delay    time.Duration
	Client   *http.Client
	Reporter *progress.Reporter
	Logger   *slog.Logger
}

var _ workload.Runner = (*Uploader)(nil)

// Run uploads the given files, or everything under TextsDir when items is
// empty. The exit code is 0 when every upload succeeded, 1 otherwise.
func (u *Uploader) Run(ctx context.Context, items []string) (int, error) {
	files, err := u.resolve(items)
	if err != nil {
		return 1, err
	}
	if len(files) == 0 {
		u.Reporter.Linef("No ebook files to upload")
		return 0, nil
	}

	entries := make([]entry, 0, len(files))
	for _, path := range files {
		rel := filepath.Base(path)
		if r, err := filepath.Rel(u.TextsDir, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
		entries = append(entries, entry{path: path, rel: filepath.ToSlash(rel)})
	}

	total := len(entries)
	succeeded, failed := 0, 0
	u.Reporter.Emit(progress.Record{Total: total, Label: "Starting upload to e-paper device"})

	for _, folder := range collectFolders(entries) {
		if ctx.Err() != nil {
			return 1, ctx.Err()
		}
		u.Reporter.Emit(progress.Record{Total: total, Label: fmt.Sprintf("Creating folder: /%s/", folder)})
		if err := u.createFolder(ctx, folder); err != nil {
			// The folder usually exists already; the upload itself will
			// tell us if it truly doesn't.
			u.Logger.Warn("creating folder failed", "folder", folder, "error", err)
		}
	}

	var uploaded []entry
	for i, e := range entries {
		if ctx.Err() != nil {
			return 1, ctx.Err()
		}
		u.Reporter.Emit(progress.Record{
			Succeeded: succeeded,
			Failed:    failed,
			Processed: i,
			Total:     total,
			Label:     fmt.Sprintf("Uploading: %s", e.rel),
		})

		if err := u.uploadFile(ctx, e.path, e.rel); err != nil {
			failed++
			u.Reporter.Linef("upload failed: %s: %v", e.rel, err)
			u.Logger.Warn("upload failed", "file", e.rel, "error", err)
		} else {
			succeeded++
			uploaded = append(uploaded, e)
		}

		if i < total-1 && u.Delay > 0 {
			select {
			case <-time.After(u.Delay):
			case <-ctx.Done():
				return 1, ctx.Err()
			}
		}
	}

	u.Reporter.Emit(progress.Record{
		Succeeded: succeeded,
		Failed:    failed,
		Processed: succeeded + failed,
		Total:     total,
		Label:     "Upload complete",
	})

	if !u.KeepFiles {
		for _, e := range uploaded {
			if err := os.Remove(e.path); err != nil {
				u.Reporter.Linef("could not delete %s: %v", e.rel, err)
			} else {
				u.Logger.Info("deleted after upload", "file", e.rel)
			}
		}
	}

	if failed > 0 {
		return 1, nil
	}
	return 0, nil
}

// resolve expands the caller-supplied items (or the whole texts dir) into
// concrete file paths, dropping unsupported or missing entries with a
// diagnostic.
func (u *Uploader) resolve(items []string) ([]string, error) {
	if len(items) == 0 {
		return FindBooks(u.TextsDir)
	}

	var files []string
	for _, item := range items {
		path := item
		if !filepath.IsAbs(path) {
			inTexts := filepath.Join(u.TextsDir, item)
			if _, err := os.Stat(inTexts); err == nil {
				path = inTexts
			} else if abs, err := filepath.Abs(item); err == nil {
				path = abs
			}
		}
		if _, err := os.Stat(path); err != nil || !isSupported(path) {
			u.Reporter.Linef("skipping missing or unsupported file: %s", item)
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// entry pairs a local file with its path on the device.
type entry struct {
	path string
	rel  string
}

// collectFolders returns every device directory the uploads need, parents
// first.
func collectFolders(entries []entry) []string {
	seen := make(map[string]bool)
	var folders []string
	for _, e := range entries {
		dir := ""
		for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(e.rel)), "/") {
			if part == "" || part == "." {
				continue
			}
			if dir == "" {
				dir = part
			} else {
				dir = dir + "/" + part
			}
			if !seen[dir] {
				seen[dir] = true
				folders = append(folders, dir)
			}
		}
	}
	sort.Strings(folders)
	return folders
}

// createFolder issues the PUT the device's web UI uses for mkdir: a path
// field with a trailing slash.
func (u *Uploader) createFolder(ctx context.Context, folder string) error {
	form := url.Values{"path": {"/" + folder + "/"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device answered %s", resp.Status)
	}
	return nil
}

// uploadFile POSTs one file as multipart form data, the way the device's
// own web page does: field "data", target path as the filename.
func (u *Uploader) uploadFile(ctx context.Context, path, rel string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="data"; filename="/%s"`, rel))
		header.Set("Content-Type", mimeTypeFor(rel))
		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device answered %s", resp.Status)
	}
	return nil
}

func mimeTypeFor(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".epub") {
		return "application/epub+zip"
	}
	return "application/octet-stream"
}
