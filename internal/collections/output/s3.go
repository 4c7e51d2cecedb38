package output

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure S3Writer implements pkg.Consumer.
var _ pkg.Consumer = (*S3Writer)(nil)

const defaultS3Region = "us-east-1"

// objectPutter is the subset of *s3.Client the writer uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer uploads a frame as a single CSV or JSON object.
//
// Options:
//   - bucket, key (required): destination object.
//   - format: "csv" or "json", default taken from the key extension.
//   - region: default "us-east-1".
//   - endpoint, path_style: for S3 compatible stores such as MinIO.
//   - access_key, secret_key: static credentials; the default chain is used otherwise.
type S3Writer struct {
	pkg.Base

	bucket    string
	key       string
	format    Format
	region    string
	endpoint  string
	pathStyle bool
	accessKey string
	secretKey string

	newClient func(ctx context.Context) (objectPutter, error)
}

func newS3Writer(b pkg.Base) (*S3Writer, error) {
	bucket, err := b.RequireString("bucket")
	if err != nil {
		return nil, err
	}
	key, err := b.RequireString("key")
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(b, key)
	if err != nil {
		return nil, err
	}

	w := &S3Writer{
		Base:      b,
		bucket:    bucket,
		key:       key,
		format:    format,
		region:    b.StringOr("region", defaultS3Region),
		endpoint:  b.StringOr("endpoint", ""),
		pathStyle: b.BoolOr("path_style", false),
		accessKey: b.StringOr("access_key", ""),
		secretKey: b.StringOr("secret_key", ""),
	}
	if (w.accessKey == "") != (w.secretKey == "") {
		return nil, fmt.Errorf("%w: \"access_key\" and \"secret_key\" must be set together", pkg.ErrInvalidOption)
	}
	w.newClient = w.client
	return w, nil
}

func (*S3Writer) Name() string { return "s3_writer" }

func (w *S3Writer) client(ctx context.Context) (objectPutter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(w.region)}
	if w.accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(w.accessKey, w.secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if w.endpoint != "" {
			o.BaseEndpoint = aws.String(w.endpoint)
		}
		o.UsePathStyle = w.pathStyle
	}), nil
}

func (w *S3Writer) Consume(ctx context.Context, f pkg.Frame) error {
	df, err := frames.Materialize(f)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := w.format.write(df, &buf); err != nil {
		return fmt.Errorf("encoding %s: %w", w.format, err)
	}

	client, err := w.newClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(w.format.contentType()),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", w.bucket, w.key, err)
	}

	w.Log().Info("wrote output", "bucket", w.bucket, "key", w.key, "rows", df.Nrow(), "bytes", buf.Len())
	return nil
}

// PredictSchema checks the client can be configured and passes the schema through.
func (w *S3Writer) PredictSchema(ctx context.Context, schema pkg.Schema) (pkg.Schema, error) {
	if _, err := w.newClient(ctx); err != nil {
		return nil, err
	}
	return schema, nil
}
