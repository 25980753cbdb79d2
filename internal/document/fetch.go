package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ppiankov/contractrag/internal/model"
)

const fetchAttempts = 3

// fetchSleepFunc is the sleep used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// ObjectGetter is the part of the S3 client the fetcher needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source is raw document content plus where it came from
type Source struct {
	Location    string // Path or URI as given
	Name        string // Base file name, used for loader dispatch
	ContentType string
	Data        []byte
}

// Fetcher reads documents from local paths, http(s) URLs and s3:// URIs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	s3Region   string
	s3Endpoint string
	s3Once     sync.Once
	s3Client   ObjectGetter
	s3Err      error
}

// NewFetcher creates a fetcher from input settings
func NewFetcher(cfg model.InputConfig) *Fetcher {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		s3Region:   cfg.S3Region,
		s3Endpoint: cfg.S3Endpoint,
	}
}

// WithS3Client replaces the lazily built S3 client
func (f *Fetcher) WithS3Client(client ObjectGetter) *Fetcher {
	f.s3Once.Do(func() {})
	f.s3Client = client
	f.s3Err = nil
	return f
}

// Fetch reads the document at location
func (f *Fetcher) Fetch(ctx context.Context, location string) (*Source, error) {
	switch {
	case strings.HasPrefix(location, "s3://"):
		return f.fetchS3(ctx, location)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.fetchHTTP(ctx, location)
	default:
		return f.fetchFile(location)
	}
}

func (f *Fetcher) fetchFile(p string) (*Source, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", p, info.Size(), f.maxBytes)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return &Source{Location: p, Name: filepath.Base(p), Data: data}, nil
}

// fetchHTTP retries transport errors, 429 and 5xx responses with backoff
func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (*Source, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<(attempt-1)) * 500 * time.Millisecond)
		}
		src, err := f.fetchHTTPOnce(ctx, rawURL)
		if err == nil {
			return src, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchHTTPOnce(ctx context.Context, rawURL string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Code: resp.StatusCode, Status: resp.Status}
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	name := path.Base(resp.Request.URL.Path)
	if name == "/" || name == "." {
		name = resp.Request.URL.Host
	}
	return &Source{
		Location:    rawURL,
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

type statusError struct {
	Code   int
	Status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// isRetryableFetchError reports whether another attempt could succeed
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func (f *Fetcher) fetchS3(ctx context.Context, uri string) (*Source, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client, err := f.s3()
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := f.readLimited(out.Body)
	if err != nil {
		return nil, err
	}
	return &Source{
		Location:    uri,
		Name:        path.Base(key),
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}

// s3 builds the client from the default credential chain on first use
func (f *Fetcher) s3() (ObjectGetter, error) {
	f.s3Once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if f.s3Region != "" {
			opts = append(opts, awsconfig.WithRegion(f.s3Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			f.s3Err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		endpoint := f.s3Endpoint
		f.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return f.s3Client, f.s3Err
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 uri: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 uri %q has no object key", uri)
	}
	return u.Host, key, nil
}
