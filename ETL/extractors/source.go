package extractors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Destination - файл, в который загружается ресурс
type Destination interface {
	io.Writer
	io.WriterAt
}

// Source загружает ресурс по URL
type Source interface {
	Fetch(ctx context.Context, u *url.URL, dst Destination) (int64, error)
}

// HTTPSource загружает ресурсы по http(s)
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource создает новый экземпляр HTTPSource
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch выполняет GET-запрос и копирует тело ответа в dst
func (s *HTTPSource) Fetch(ctx context.Context, u *url.URL, dst Destination) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка при создании запроса: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ошибка при запросе %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("запрос %s вернул статус %s", u.Redacted(), resp.Status)
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, fmt.Errorf("ошибка при чтении ответа %s: %w", u.Redacted(), err)
	}
	return n, nil
}

// S3Source загружает объекты s3://bucket/key
type S3Source struct {
	region     string
	downloader *s3manager.Downloader
}

// NewS3Source создает новый экземпляр S3Source. Сессия AWS создается
// при первой загрузке.
func NewS3Source(region string) *S3Source {
	return &S3Source{region: region}
}

func (s *S3Source) getDownloader() (*s3manager.Downloader, error) {
	if s.downloader != nil {
		return s.downloader, nil
	}
	cfg := &aws.Config{}
	if s.region != "" {
		cfg.Region = aws.String(s.region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании сессии AWS: %w", err)
	}
	s.downloader = s3manager.NewDownloader(sess)
	return s.downloader, nil
}

// Fetch загружает объект S3 в dst
func (s *S3Source) Fetch(ctx context.Context, u *url.URL, dst Destination) (int64, error) {
	bucket, key, err := ParseS3URL(u)
	if err != nil {
		return 0, err
	}

	downloader, err := s.getDownloader()
	if err != nil {
		return 0, err
	}

	n, err := downloader.DownloadWithContext(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, fmt.Errorf("ошибка при загрузке s3://%s/%s: %w", bucket, key, err)
	}
	return n, nil
}

// ParseS3URL разбирает s3://bucket/key на бакет и ключ
func ParseS3URL(u *url.URL) (string, string, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("некорректный адрес S3 %q: ожидается s3://bucket/key", u.String())
	}
	return bucket, key, nil
}
