package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/job-progress-tracker/internal/publisher"
)

var _ publisher.Publisher = (*Publisher)(nil)

func TestPublishRequiresPublisher(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Publish(context.Background(), "topic", map[string]string{"k": "v"}, nil)
	require.ErrorContains(t, err, "not configured")
	require.NoError(t, p.Close())
}

func TestDialRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "project", "")
	require.Error(t, err)
}

func fakeServer(t *testing.T) (*pstest.Server, []option.ClientOption) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, []option.ClientOption{option.WithGRPCConn(conn)}
}

func createTopic(t *testing.T, opts []option.ClientOption, name string) {
	t.Helper()

	ctx := context.Background()
	admin, err := pubsubv2.NewClient(ctx, "project-id", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })
	_, err = admin.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	require.NoError(t, err)
}

func TestDialMissingTopic(t *testing.T) {
	t.Parallel()

	_, opts := fakeServer(t)
	_, err := Dial(context.Background(), "project-id", "absent", opts...)
	require.ErrorContains(t, err, "get pubsub topic")
}

func TestPublishToFakeServer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, opts := fakeServer(t)
	createTopic(t, opts, "projects/project-id/topics/job-outcomes")

	p, err := Dial(ctx, "project-id", "job-outcomes", opts...)
	require.NoError(t, err)

	attrs := map[string]string{"job_id": "job-1", "status": "completed"}
	id, err := p.Publish(ctx, "job-outcomes", map[string]any{"jobId": "job-1"}, attrs)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, p.Close())

	_, err = p.Publish(ctx, "job-outcomes", map[string]any{"jobId": "job-2"}, nil)
	require.Error(t, err, "publishing after Close fails")

	require.Len(t, attrs, 2, "caller attributes are not mutated")
}

func TestPublishMessageContents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, opts := fakeServer(t)
	createTopic(t, opts, "projects/project-id/topics/job-outcomes")

	p, err := Dial(ctx, "project-id", "job-outcomes", opts...)
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	_, err = p.Publish(ctx, "job-outcomes", map[string]any{"jobId": "job-1", "status": "error"}, map[string]string{"job_id": "job-1"})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "job-1", msgs[0].Attributes["job_id"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	require.Equal(t, "error", body["status"])
}

func TestMessageAttributesCopiesInput(t *testing.T) {
	t.Parallel()

	require.NotNil(t, messageAttributes(context.Background(), nil))

	in := map[string]string{"job_id": "a"}
	out := messageAttributes(context.Background(), in)
	out["status"] = "completed"
	require.Len(t, in, 1)
	require.Equal(t, "a", out["job_id"])
}
