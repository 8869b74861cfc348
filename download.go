package treelstm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// progressStep is how often, in percent, download progress is logged.
const progressStep = 10

// downloadFile fetches url into outputPath. The file only appears under its
// final name once the body has been read completely.
func downloadFile(ctx context.Context, logger log.FieldLogger, outputPath, url string) error {
	logger = logger.WithFields(log.Fields{"url": url, "dest": outputPath})
	logger.Info("downloading file")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	tmp := outputPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	contentLength := resp.ContentLength
	var totalRead int64
	nextReport := progressStep
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			totalRead += int64(n)
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return fmt.Errorf("failed to write to file %s: %w", tmp, writeErr)
			}
			if contentLength > 0 {
				percentage := int(totalRead * 100 / contentLength)
				for percentage >= nextReport && nextReport <= 100 {
					logger.Debugf("downloading... %d%% complete", nextReport)
					nextReport += progressStep
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to read data: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		return err
	}
	logger.WithField("bytes", totalRead).Info("download complete")
	return nil
}
