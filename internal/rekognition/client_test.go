package rekognition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/liveness"
)

type stubAPI struct {
	createInputs []*rekognition.CreateFaceLivenessSessionInput
	createOut    *rekognition.CreateFaceLivenessSessionOutput
	createErr    error

	resultsInputs []*rekognition.GetFaceLivenessSessionResultsInput
	resultsOut    *rekognition.GetFaceLivenessSessionResultsOutput
	resultsErr    error
}

func (s *stubAPI) CreateFaceLivenessSession(ctx context.Context, params *rekognition.CreateFaceLivenessSessionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateFaceLivenessSessionOutput, error) {
	s.createInputs = append(s.createInputs, params)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createOut, nil
}

func (s *stubAPI) GetFaceLivenessSessionResults(ctx context.Context, params *rekognition.GetFaceLivenessSessionResultsInput, optFns ...func(*rekognition.Options)) (*rekognition.GetFaceLivenessSessionResultsOutput, error) {
	s.resultsInputs = append(s.resultsInputs, params)
	if s.resultsErr != nil {
		return nil, s.resultsErr
	}
	return s.resultsOut, nil
}

// statusError stands in for the SDK's transport response error.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string       { return fmt.Sprintf("http %d: %v", e.status, e.err) }
func (e *statusError) Unwrap() error       { return e.err }
func (e *statusError) HTTPStatusCode() int { return e.status }

func TestCreateSessionSendsEmptyInputByDefault(t *testing.T) {
	api := &stubAPI{createOut: &rekognition.CreateFaceLivenessSessionOutput{SessionId: aws.String("sess-1")}}
	client := NewWithAPI(api, Options{}, zap.NewNop())

	id, err := client.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if id != "sess-1" {
		t.Fatalf("unexpected session id: %s", id)
	}
	if len(api.createInputs) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(api.createInputs))
	}
	input := api.createInputs[0]
	if input.Settings != nil || input.KmsKeyId != nil || input.ClientRequestToken != nil {
		t.Fatalf("expected empty input, got %+v", input)
	}
}

func TestCreateSessionForwardsConfiguredSettings(t *testing.T) {
	api := &stubAPI{createOut: &rekognition.CreateFaceLivenessSessionOutput{SessionId: aws.String("sess-2")}}
	client := NewWithAPI(api, Options{
		AuditImagesLimit: 2,
		OutputBucket:     "liveness-audit",
		OutputPrefix:     "poc/",
		KMSKeyID:         "kms-key",
	}, zap.NewNop())

	if _, err := client.CreateSession(context.Background()); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	input := api.createInputs[0]
	if aws.ToString(input.KmsKeyId) != "kms-key" {
		t.Fatalf("unexpected kms key: %v", input.KmsKeyId)
	}
	if input.Settings == nil || aws.ToInt32(input.Settings.AuditImagesLimit) != 2 {
		t.Fatalf("expected audit images limit 2, got %+v", input.Settings)
	}
	if input.Settings.OutputConfig == nil ||
		aws.ToString(input.Settings.OutputConfig.S3Bucket) != "liveness-audit" ||
		aws.ToString(input.Settings.OutputConfig.S3KeyPrefix) != "poc/" {
		t.Fatalf("unexpected output config: %+v", input.Settings.OutputConfig)
	}
}

func TestCreateSessionRejectsEmptySessionID(t *testing.T) {
	api := &stubAPI{createOut: &rekognition.CreateFaceLivenessSessionOutput{}}
	client := NewWithAPI(api, Options{}, zap.NewNop())

	_, err := client.CreateSession(context.Background())
	var upstream *liveness.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
}

func TestGetSessionResultsMapsOutput(t *testing.T) {
	api := &stubAPI{resultsOut: &rekognition.GetFaceLivenessSessionResultsOutput{
		SessionId:  aws.String("sess-3"),
		Status:     types.LivenessSessionStatusSucceeded,
		Confidence: aws.Float32(97.5),
		ReferenceImage: &types.AuditImage{
			Bytes:       []byte("ref"),
			BoundingBox: &types.BoundingBox{Width: aws.Float32(0.5), Top: aws.Float32(0.1)},
		},
		AuditImages: []types.AuditImage{
			{S3Object: &types.S3Object{Bucket: aws.String("b"), Name: aws.String("n")}},
			{Bytes: []byte("a2")},
		},
	}}
	client := NewWithAPI(api, Options{}, zap.NewNop())

	results, err := client.GetSessionResults(context.Background(), "sess-3")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if aws.ToString(api.resultsInputs[0].SessionId) != "sess-3" {
		t.Fatalf("session id was not forwarded unmodified: %v", api.resultsInputs[0].SessionId)
	}
	if results.Status != liveness.StatusSucceeded {
		t.Fatalf("unexpected status: %s", results.Status)
	}
	if results.Confidence == nil || *results.Confidence != 97.5 {
		t.Fatalf("unexpected confidence: %v", results.Confidence)
	}
	if results.ReferenceImage == nil || string(results.ReferenceImage.Bytes) != "ref" {
		t.Fatalf("unexpected reference image: %+v", results.ReferenceImage)
	}
	if bb := results.ReferenceImage.BoundingBox; bb == nil || aws.ToFloat32(bb.Width) != 0.5 || bb.Height != nil {
		t.Fatalf("unexpected bounding box: %+v", bb)
	}
	if len(results.AuditImages) != 2 {
		t.Fatalf("expected 2 audit images, got %d", len(results.AuditImages))
	}
	if obj := results.AuditImages[0].S3Object; obj == nil || aws.ToString(obj.Bucket) != "b" || aws.ToString(obj.Name) != "n" {
		t.Fatalf("unexpected s3 object: %+v", obj)
	}
}

func TestGetSessionResultsWrapsServiceErrors(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "SessionNotFoundException", Message: "Session not found"}
	api := &stubAPI{resultsErr: &statusError{status: http.StatusBadRequest, err: apiErr}}
	client := NewWithAPI(api, Options{}, zap.NewNop())

	_, err := client.GetSessionResults(context.Background(), "missing")
	var upstream *liveness.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if upstream.Code != "SessionNotFoundException" {
		t.Fatalf("unexpected code: %s", upstream.Code)
	}
	if upstream.Message != "Session not found" {
		t.Fatalf("unexpected message: %s", upstream.Message)
	}
	if upstream.HTTPStatus() != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", upstream.HTTPStatus())
	}
	if upstream.SessionID != "missing" || upstream.Operation != opGetResults {
		t.Fatalf("unexpected metadata: %+v", upstream)
	}
}

func TestCreateSessionTransportErrorDefaultsTo500(t *testing.T) {
	api := &stubAPI{createErr: errors.New("dial tcp: connection refused")}
	client := NewWithAPI(api, Options{}, zap.NewNop())

	_, err := client.CreateSession(context.Background())
	if status := liveness.StatusCode(err); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if liveness.PublicMessage(err) != "dial tcp: connection refused" {
		t.Fatalf("unexpected message: %s", liveness.PublicMessage(err))
	}
}
