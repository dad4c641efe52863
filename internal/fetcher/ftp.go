// Package fetcher collects source documents for a batch: local files,
// recursive folder walks and FTP staging downloads.
package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/resilience"
)

// FTPStager downloads remote documents into a local staging directory so
// the archival pipeline only ever reads local paths.
type FTPStager struct {
	timeout time.Duration
	retry   resilience.RetryConfig
}

// NewFTPStager creates a stager with the given per-connection timeout.
func NewFTPStager(timeout time.Duration) *FTPStager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("ftp", "stage")
	return &FTPStager{timeout: timeout, retry: cfg}
}

// parseFTPURL splits an FTP URL into dial host (with port), credentials
// and remote path. Anonymous login is assumed when the URL carries no
// userinfo.
func parseFTPURL(rawURL string) (host, user, pass, remotePath string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	if u.Path == "" {
		return "", "", "", "", eris.New("fetcher: empty path in ftp url")
	}

	user, pass = "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}

	return host, user, pass, u.Path, nil
}

// ftpConnReader ties the response stream to its connection so closing the
// reader also quits the session.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "fetcher: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "fetcher: quit ftp connection")
	}
	return nil
}

// Open retrieves the remote file and returns its stream. The caller must
// close the ReadCloser to release the connection.
func (f *FTPStager) Open(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, user, pass, remotePath, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", remotePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: ftp dial"))
	}

	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// Stage downloads the FTP URL into stagingDir, retrying transient
// connection failures, and returns the local path for the pipeline.
func (f *FTPStager) Stage(ctx context.Context, ftpURL, stagingDir string) (string, error) {
	_, _, _, remotePath, err := parseFTPURL(ftpURL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create staging dir")
	}
	localPath := filepath.Join(stagingDir, path.Base(remotePath))

	err = resilience.Do(ctx, f.retry, func(ctx context.Context) error {
		rc, err := f.Open(ctx, ftpURL)
		if err != nil {
			return err
		}
		defer rc.Close()

		file, err := os.Create(localPath)
		if err != nil {
			return eris.Wrap(err, "fetcher: create staged file")
		}
		defer file.Close()

		if _, err := io.Copy(file, rc); err != nil {
			return eris.Wrap(err, "fetcher: write staged file")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	zap.L().Info("staged remote source", zap.String("url", ftpURL), zap.String("local", localPath))
	return localPath, nil
}
