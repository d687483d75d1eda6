package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/pkg/failure"
	"github.com/nrahal/wgor/pkg/retry"
)

/*
FTPFetcher

Responsibilities

- Open a control connection, authenticate (anonymous unless the URL
  carries credentials), switch to binary mode, and RETR a single file
  over a passive-mode data connection.
- Classify the retrieved bytes the same RETROKF/TEXTHTML/TEXTCSS way
  HTTPFetcher does, from the file extension (FTP carries no
  Content-Type header to read).

This is a minimal net/textproto client covering the single-file RETR
path a mirror crawl needs, not a general-purpose FTP library.
*/
type FTPFetcher struct {
	metadataSink metadata.MetadataSink
	dialTimeout  time.Duration
}

// NewFTPFetcher builds an FTPFetcher with the given control/data dial
// timeout.
func NewFTPFetcher(metadataSink metadata.MetadataSink, dialTimeout time.Duration) *FTPFetcher {
	return &FTPFetcher{metadataSink: metadataSink, dialTimeout: dialTimeout}
}

func (f *FTPFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	startTime := time.Now()

	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return f.performFetch(ctx, fetchParam.fetchUrl)
	}

	result := retry.Retry(retryParam, fetchTask)
	duration := time.Since(startTime)

	var statusCode int
	if result.IsSuccess() {
		statusCode = 200
	}

	f.metadataSink.RecordFetch(fetchParam.fetchUrl, statusCode, duration, "", result.Attempts()-1, crawlDepth)

	if result.IsFailure() {
		f.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			"FTPFetcher.Fetch",
			metadata.CauseNetworkFailure,
			result.Err().Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl)},
		)
		return FetchResult{}, result.Err()
	}
	return result.Value(), nil
}

func (f *FTPFetcher) performFetch(ctx context.Context, fetchUrl string) (FetchResult, failure.ClassifiedError) {
	u, err := url.Parse(fetchUrl)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("invalid FTP URL: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "21"
	}

	dialer := net.Dialer{Timeout: f.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("ftp control dial failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseFTPControlFailure,
		}
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	if _, _, err := tp.ReadResponse(220); err != nil {
		return FetchResult{}, ftpErr("ftp greeting failed", err)
	}

	user, pass := credentials(u)
	if err := tp.PrintfLine("USER %s", user); err != nil {
		return FetchResult{}, ftpErr("ftp USER command failed", err)
	}
	if _, _, err := tp.ReadResponse(331); err != nil {
		if _, _, err2 := tp.ReadResponse(230); err2 != nil {
			return FetchResult{}, ftpErr("ftp USER rejected", err)
		}
	} else {
		if err := tp.PrintfLine("PASS %s", pass); err != nil {
			return FetchResult{}, ftpErr("ftp PASS command failed", err)
		}
		if _, _, err := tp.ReadResponse(230); err != nil {
			return FetchResult{}, ftpErr("ftp PASS rejected", err)
		}
	}

	if err := tp.PrintfLine("TYPE I"); err != nil {
		return FetchResult{}, ftpErr("ftp TYPE command failed", err)
	}
	if _, _, err := tp.ReadResponse(200); err != nil {
		return FetchResult{}, ftpErr("ftp TYPE rejected", err)
	}

	dataConn, err := f.openPassive(tp, host)
	if err != nil {
		return FetchResult{}, ftpErr("ftp PASV failed", err)
	}
	defer dataConn.Close()

	if err := tp.PrintfLine("RETR %s", u.Path); err != nil {
		return FetchResult{}, ftpErr("ftp RETR command failed", err)
	}
	if _, _, err := tp.ReadResponse(150); err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("ftp RETR rejected: %v", err),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	body, err := io.ReadAll(dataConn)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read ftp data connection: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	if _, _, err := tp.ReadResponse(226); err != nil {
		return FetchResult{}, ftpErr("ftp transfer did not complete cleanly", err)
	}

	return FetchResult{
		url:      fetchUrl,
		body:     body,
		status:   StatusOK,
		dataType: classifyFTPPath(u.Path),
		meta:     ResponseMeta{statusCode: 200},
	}, nil
}

// openPassive issues PASV on tp and dials the (host, port) it returns.
func (f *FTPFetcher) openPassive(tp *textproto.Conn, controlHost string) (net.Conn, error) {
	if err := tp.PrintfLine("PASV"); err != nil {
		return nil, err
	}
	_, line, err := tp.ReadResponse(227)
	if err != nil {
		return nil, err
	}
	host, port, err := parsePASV(line)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = controlHost
	}
	return net.DialTimeout("tcp", net.JoinHostPort(host, port), f.dialTimeout)
}

// parsePASV extracts the (host, port) pair from a 227 response like
// "Entering Passive Mode (127,0,0,1,200,13)".
func parsePASV(line string) (string, string, error) {
	open := strings.IndexByte(line, '(')
	shut := strings.IndexByte(line, ')')
	if open < 0 || shut < 0 || shut < open {
		return "", "", fmt.Errorf("unparseable PASV response: %s", line)
	}
	parts := strings.Split(line[open+1:shut], ",")
	if len(parts) != 6 {
		return "", "", fmt.Errorf("unparseable PASV address: %s", line)
	}
	host := strings.Join(parts[0:4], ".")
	p1, err1 := strconv.Atoi(parts[4])
	p2, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil {
		return "", "", fmt.Errorf("unparseable PASV port: %s", line)
	}
	port := strconv.Itoa(p1*256 + p2)
	return host, port, nil
}

func credentials(u *url.URL) (string, string) {
	if u.User == nil {
		return "anonymous", "anonymous@"
	}
	user := u.User.Username()
	pass, _ := u.User.Password()
	if pass == "" {
		pass = "anonymous@"
	}
	return user, pass
}

func classifyFTPPath(path string) DataType {
	lower := strings.ToLower(path)
	dataType := RETROKF
	switch {
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		dataType |= TEXTHTML
	case strings.HasSuffix(lower, ".css"):
		dataType |= TEXTCSS
	}
	return dataType
}

func ftpErr(message string, cause error) *FetchError {
	return &FetchError{
		Message:   fmt.Sprintf("%s: %v", message, cause),
		Retryable: true,
		Cause:     ErrCauseFTPControlFailure,
	}
}
