// Package remote talks to the 3GPP specification archive over FTP.
package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// TLS modes accepted by Options.TLS.
const (
	TLSNone     = "none"
	TLSExplicit = "explicit"
	TLSImplicit = "implicit"
)

// Entry is one file of a document directory.
type Entry struct {
	Series   string
	Document string
	Name     string
}

// Dir returns the archive directory holding the entry.
func (e Entry) Dir(basePath string) string {
	return DocumentDir(basePath, e.Series, e.Document)
}

// Path returns the full remote path of the entry.
func (e Entry) Path(basePath string) string {
	return path.Join(e.Dir(basePath), e.Name)
}

// SeriesDir returns the archive directory of a series, e.g. /Specs/archive/33_series.
func SeriesDir(basePath, series string) string {
	return path.Join(basePath, series+"_series")
}

// DocumentDir returns the archive directory of a document, e.g. /Specs/archive/33_series/33.117.
func DocumentDir(basePath, series, document string) string {
	return path.Join(SeriesDir(basePath, series), series+"."+document)
}

// Session is an open connection to the archive.
type Session interface {
	ListSeries(series string) ([]string, error)
	ListDocumentFiles(series, document string) ([]string, error)
	Size(e Entry) (int64, error)
	Retrieve(e Entry, w io.Writer) (int64, error)
	Close() error
}

// Options configures Dial.
type Options struct {
	Host               string
	Port               string
	User               string
	Pass               string
	BasePath           string
	TLS                string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// Debug receives the raw FTP conversation when set.
	Debug io.Writer
}

// serverConn is the part of *ftp.ServerConn a Client uses.
type serverConn interface {
	Login(user, password string) error
	Type(transferType ftp.TransferType) error
	ChangeDir(path string) error
	NameList(path string) ([]string, error)
	FileSize(path string) (int64, error)
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

type ftpConn struct {
	*ftp.ServerConn
}

func (c ftpConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Client is a Session backed by a single FTP control connection.
type Client struct {
	conn     serverConn
	basePath string
	logger   *log.Logger
}

var _ Session = (*Client)(nil)

// Dial connects and logs in. Empty credentials log in anonymously.
func Dial(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	addr := net.JoinHostPort(opts.Host, opts.Port)
	logger.Printf("Connecting to %s ...", addr)

	dialOptions, err := buildDialOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	conn, err := ftp.Dial(addr, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}

	c := &Client{conn: ftpConn{conn}, basePath: opts.BasePath, logger: logger}
	if err := c.login(opts); err != nil {
		return nil, err
	}
	return c, nil
}

func buildDialOptions(ctx context.Context, opts Options) ([]ftp.DialOption, error) {
	dialOptions := []ftp.DialOption{
		ftp.DialWithContext(ctx),
	}
	if opts.Timeout > 0 {
		dialOptions = append(dialOptions, ftp.DialWithTimeout(opts.Timeout))
	}
	if opts.Debug != nil {
		dialOptions = append(dialOptions, ftp.DialWithDebugOutput(opts.Debug))
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
		ServerName:         opts.Host,
	}
	switch opts.TLS {
	case TLSImplicit:
		dialOptions = append(dialOptions, ftp.DialWithTLS(tlsConfig))
	case TLSExplicit:
		dialOptions = append(dialOptions, ftp.DialWithExplicitTLS(tlsConfig))
	case "", TLSNone:
	default:
		return nil, fmt.Errorf("unknown tls mode %q", opts.TLS)
	}
	return dialOptions, nil
}

// login authenticates and switches to binary transfers. The connection is
// closed on failure.
func (c *Client) login(opts Options) error {
	user, pass := opts.User, opts.Pass
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := c.conn.Login(user, pass); err != nil {
		_ = c.conn.Quit()
		return fmt.Errorf("login: %w", err)
	}
	if err := c.conn.Type(ftp.TransferTypeBinary); err != nil {
		_ = c.conn.Quit()
		return fmt.Errorf("set binary transfer mode: %w", err)
	}
	c.logger.Println("Logged in successfully.")
	return nil
}

// ListSeries lists the document directories of a series in server order.
func (c *Client) ListSeries(series string) ([]string, error) {
	return c.list(SeriesDir(c.basePath, series))
}

// ListDocumentFiles lists the files of a document directory, sorted.
func (c *Client) ListDocumentFiles(series, document string) ([]string, error) {
	names, err := c.list(DocumentDir(c.basePath, series, document))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) list(dir string) ([]string, error) {
	if err := c.conn.ChangeDir(dir); err != nil {
		return nil, fmt.Errorf("change directory to %s: %w", dir, err)
	}
	entries, err := c.conn.NameList("")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, name := range entries {
		// Some servers answer NLST with full paths.
		name = path.Base(strings.TrimSpace(name))
		if name == "." || name == ".." || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Size returns the remote size of e, or -1 when the server does not report it.
func (c *Client) Size(e Entry) (int64, error) {
	size, err := c.conn.FileSize(e.Path(c.basePath))
	if err != nil {
		return -1, fmt.Errorf("size of %s: %w", e.Name, err)
	}
	return size, nil
}

// Retrieve streams e into w.
func (c *Client) Retrieve(e Entry, w io.Writer) (int64, error) {
	remotePath := e.Path(c.basePath)
	reader, err := c.conn.Retr(remotePath)
	if err != nil {
		return 0, fmt.Errorf("retrieve %s: %w", remotePath, err)
	}
	defer reader.Close()

	n, err := io.Copy(w, reader)
	if err != nil {
		return n, fmt.Errorf("read %s: %w", remotePath, err)
	}
	return n, nil
}

// Close ends the session.
func (c *Client) Close() error {
	if err := c.conn.Quit(); err != nil {
		return fmt.Errorf("close ftp connection: %w", err)
	}
	return nil
}
