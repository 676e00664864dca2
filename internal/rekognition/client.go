package rekognition

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/liveness"
	"github.com/example/face-liveness/internal/logging"
)

const (
	opCreateSession = "rekognition.create_face_liveness_session"
	opGetResults    = "rekognition.get_face_liveness_session_results"
)

// Options configures the Rekognition face liveness client.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Session settings forwarded on every CreateFaceLivenessSession call.
	AuditImagesLimit int32
	OutputBucket     string
	OutputPrefix     string
	KMSKeyID         string
}

// API is the subset of the Rekognition SDK client used by the broker.
type API interface {
	CreateFaceLivenessSession(ctx context.Context, params *rekognition.CreateFaceLivenessSessionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateFaceLivenessSessionOutput, error)
	GetFaceLivenessSessionResults(ctx context.Context, params *rekognition.GetFaceLivenessSessionResultsInput, optFns ...func(*rekognition.Options)) (*rekognition.GetFaceLivenessSessionResultsOutput, error)
}

// Client adapts the Rekognition SDK to liveness.Client.
type Client struct {
	api    API
	opts   Options
	logger *zap.Logger
}

var _ liveness.Client = (*Client)(nil)

// New loads AWS configuration and returns a ready-to-use client. Static credentials are
// used when both key parts are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("rekognition.load_config", "", err)
		logger.Error("failed to load aws config", zap.Error(wrapped), zap.String("region", opts.Region))
		return nil, wrapped
	}
	return NewWithAPI(rekognition.NewFromConfig(cfg), opts, logger), nil
}

// NewWithAPI wraps an existing SDK client.
func NewWithAPI(api API, opts Options, logger *zap.Logger) *Client {
	return &Client{api: api, opts: opts, logger: logger.Named("rekognition")}
}

// CreateSession starts a new face liveness session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	out, err := c.api.CreateFaceLivenessSession(ctx, c.createInput())
	if err != nil {
		wrapped := upstreamError(opCreateSession, "", err)
		c.logger.Debug("create session call failed", zap.Error(err), zap.Int("upstream_status", wrapped.StatusCode), zap.String("upstream_code", wrapped.Code))
		return "", wrapped
	}
	sessionID := aws.ToString(out.SessionId)
	if sessionID == "" {
		return "", &liveness.UpstreamError{Operation: opCreateSession, Message: "liveness service returned an empty session id"}
	}
	c.logger.Info("session created", zap.String("session_id", sessionID))
	return sessionID, nil
}

// GetSessionResults fetches the current results for sessionID.
func (c *Client) GetSessionResults(ctx context.Context, sessionID string) (*liveness.SessionResults, error) {
	out, err := c.api.GetFaceLivenessSessionResults(ctx, &rekognition.GetFaceLivenessSessionResultsInput{
		SessionId: aws.String(sessionID),
	})
	if err != nil {
		wrapped := upstreamError(opGetResults, sessionID, err)
		c.logger.Debug("get session results call failed", zap.Error(err), zap.String("session_id", sessionID), zap.Int("upstream_status", wrapped.StatusCode), zap.String("upstream_code", wrapped.Code))
		return nil, wrapped
	}
	c.logger.Info("session results fetched", zap.String("session_id", sessionID), zap.String("status", string(out.Status)))
	return toSessionResults(sessionID, out), nil
}

func (c *Client) createInput() *rekognition.CreateFaceLivenessSessionInput {
	input := &rekognition.CreateFaceLivenessSessionInput{}
	if c.opts.KMSKeyID != "" {
		input.KmsKeyId = aws.String(c.opts.KMSKeyID)
	}

	var settings types.CreateFaceLivenessSessionRequestSettings
	hasSettings := false
	if c.opts.AuditImagesLimit > 0 {
		settings.AuditImagesLimit = aws.Int32(c.opts.AuditImagesLimit)
		hasSettings = true
	}
	if c.opts.OutputBucket != "" {
		output := &types.LivenessOutputConfig{S3Bucket: aws.String(c.opts.OutputBucket)}
		if c.opts.OutputPrefix != "" {
			output.S3KeyPrefix = aws.String(c.opts.OutputPrefix)
		}
		settings.OutputConfig = output
		hasSettings = true
	}
	if hasSettings {
		input.Settings = &settings
	}
	return input
}

func toSessionResults(sessionID string, out *rekognition.GetFaceLivenessSessionResultsOutput) *liveness.SessionResults {
	results := &liveness.SessionResults{
		SessionID:  sessionID,
		Status:     liveness.SessionStatus(out.Status),
		Confidence: out.Confidence,
	}
	if out.SessionId != nil {
		results.SessionID = *out.SessionId
	}
	if out.ReferenceImage != nil {
		ref := toAuditImage(*out.ReferenceImage)
		results.ReferenceImage = &ref
	}
	if len(out.AuditImages) > 0 {
		results.AuditImages = make([]liveness.AuditImage, 0, len(out.AuditImages))
		for _, img := range out.AuditImages {
			results.AuditImages = append(results.AuditImages, toAuditImage(img))
		}
	}
	return results
}

func toAuditImage(img types.AuditImage) liveness.AuditImage {
	out := liveness.AuditImage{Bytes: img.Bytes}
	if img.S3Object != nil {
		out.S3Object = &liveness.S3Object{
			Bucket:  img.S3Object.Bucket,
			Name:    img.S3Object.Name,
			Version: img.S3Object.Version,
		}
	}
	if img.BoundingBox != nil {
		out.BoundingBox = &liveness.BoundingBox{
			Width:  img.BoundingBox.Width,
			Height: img.BoundingBox.Height,
			Left:   img.BoundingBox.Left,
			Top:    img.BoundingBox.Top,
		}
	}
	return out
}

// upstreamError extracts the service error code, message and HTTP status from an SDK error.
func upstreamError(operation, sessionID string, err error) *liveness.UpstreamError {
	upstream := &liveness.UpstreamError{
		Operation: operation,
		SessionID: sessionID,
		Message:   err.Error(),
		Err:       err,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		upstream.Code = apiErr.ErrorCode()
		if msg := strings.TrimSpace(apiErr.ErrorMessage()); msg != "" {
			upstream.Message = msg
		}
	}

	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		upstream.StatusCode = withStatus.HTTPStatusCode()
	}
	return upstream
}
