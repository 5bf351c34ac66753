package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
	"github.com/valleykid/growup/log"
)

// S3Config authenticates export and import against S3 or an S3-compatible
// endpoint. Empty fields fall back to the default AWS configuration chain.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type urlScheme string

const (
	schemeFile  urlScheme = "file"
	schemeS3    urlScheme = "s3"
	schemeHTTP  urlScheme = "http"
	schemeHTTPS urlScheme = "https"
	schemeLocal urlScheme = "local" // no scheme, local path
)

func detectScheme(path string) urlScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// exportRecord is one line of an export file.
type exportRecord struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// Export writes every record of store in primary key order to url as JSON
// lines. url is a local path, file://, or s3://bucket/key. It returns the
// number of records written.
func (c *Client) Export(ctx context.Context, store, url string, cfg *S3Config) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	n := 0
	err := c.run(ctx, "export", store, core.ReadOnly, ErrQuery, func(s *db.ObjectStore) error {
		cur, err := s.OpenCursor(nil, core.Next)
		if err != nil {
			return err
		}
		defer cur.Close()

		for cur.Next() {
			v, err := cur.Value()
			if err != nil {
				return err
			}
			if err := enc.Encode(exportRecord{Key: exportKey(cur.PrimaryKey()), Value: v}); err != nil {
				return err
			}
			n++
		}
		return cur.Err()
	})
	if err != nil {
		return 0, err
	}

	w, err := openRemoteWriter(ctx, url, cfg)
	if err != nil {
		return 0, wrap("export", store, ErrQuery, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return 0, wrap("export", store, ErrQuery, err)
	}
	if err := w.Close(); err != nil {
		return 0, wrap("export", store, ErrQuery, err)
	}
	log.Client.Debug().Str("store", store).Str("url", url).Int("records", n).Msg("export done")
	return n, nil
}

// Import reads records written by Export from url and upserts them into
// store in one read-write transaction. url may also be http(s)://. Keys are
// reused for stores with out-of-line keys and ignored for stores with a key
// path.
func (c *Client) Import(ctx context.Context, store, url string, cfg *S3Config) (int, error) {
	r, err := openRemoteReader(ctx, url, cfg)
	if err != nil {
		return 0, wrap("import", store, ErrMutation, err)
	}
	defer r.Close()

	var records []exportRecord
	dec := json.NewDecoder(r)
	for {
		var rec exportRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, invalidArgument("import", store, "line %d: %v", len(records)+1, err)
		}
		if rec.Key, err = importKey(rec.Key); err != nil {
			return 0, invalidArgument("import", store, "line %d: %v", len(records)+1, err)
		}
		records = append(records, rec)
	}

	err = c.run(ctx, "import", store, core.ReadWrite, ErrMutation, func(s *db.ObjectStore) error {
		for _, rec := range records {
			key := rec.Key
			if s.KeyPath() != "" {
				key = nil
			}
			if _, err := s.Put(rec.Value, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Client.Debug().Str("store", store).Str("url", url).Int("records", len(records)).Msg("import done")
	return len(records), nil
}

// exportKey turns a key into JSON, tagging the types JSON cannot tell apart
// from strings.
func exportKey(key any) any {
	switch k := key.(type) {
	case time.Time:
		return map[string]any{"$date": k.UTC().Format(time.RFC3339Nano)}
	case []byte:
		return map[string]any{"$binary": base64.StdEncoding.EncodeToString(k)}
	case []any:
		out := make([]any, len(k))
		for i, e := range k {
			out[i] = exportKey(e)
		}
		return out
	default:
		return key
	}
}

func importKey(v any) (any, error) {
	switch k := v.(type) {
	case map[string]any:
		if s, ok := k["$date"].(string); ok {
			return time.Parse(time.RFC3339Nano, s)
		}
		if s, ok := k["$binary"].(string); ok {
			return base64.StdEncoding.DecodeString(s)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidKey, v)
	case []any:
		out := make([]any, len(k))
		for i, e := range k {
			var err error
			if out[i], err = importKey(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return v, nil
	}
}

func openRemoteReader(ctx context.Context, path string, cfg *S3Config) (io.ReadCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return osOpen(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return openHTTPReader(ctx, path)
	case schemeS3:
		return openS3Reader(ctx, path, cfg)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openRemoteWriter(ctx context.Context, path string, cfg *S3Config) (io.WriteCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return osCreate(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return nil, fmt.Errorf("HTTP/HTTPS does not support writing")
	case schemeS3:
		return openS3Writer(ctx, path, cfg)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openHTTPReader(ctx context.Context, url string) (io.ReadCloser, error) {
	client := &http.Client{
		Timeout: 5 * time.Minute, // generous timeout for large files
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseS3URL parses s3://bucket/key into bucket and key parts
func parseS3URL(url string) (bucket, key string, err error) {
	path := strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return parts[0], parts[1], nil
}

func getS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg != nil && cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg != nil && cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg != nil && cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // S3-compatible services
		})
	} else if cfg != nil && cfg.UsePathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func openS3Reader(ctx context.Context, url string, cfg *S3Config) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}
	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	return resp.Body, nil
}

// s3Writer buffers the export and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buffer bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buffer.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func openS3Writer(ctx context.Context, url string, cfg *S3Config) (io.WriteCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}
	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, client: client, bucket: bucket, key: key}, nil
}

// osOpen wraps os.Open - used to allow the function to be swapped in tests
var osOpen = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// osCreate wraps os.Create - used to allow the function to be swapped in tests
var osCreate = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}
