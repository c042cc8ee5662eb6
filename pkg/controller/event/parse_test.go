package event_test

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/playpack/pkg/controller/event"
	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const pushPayload = `{
  "ref": "refs/heads/master",
  "before": "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b",
  "after": "2b1f0c4e8a8d2d1f9f3c0e6b1a7d5c3e9f0a1b2c",
  "created": false,
  "deleted": false,
  "repository": {
    "id": 1296269,
    "name": "infra-repo",
    "full_name": "org/infra-repo",
    "clone_url": "https://github.com/org/infra-repo.git",
    "created_at": 1704067200,
    "pushed_at": 1704153600
  },
  "pusher": {"name": "octocat", "email": "octocat@example.com"}
}`

func TestParsePush(t *testing.T) {
	ev, err := event.ParsePush([]byte(pushPayload))
	gt.NoError(t, err).Required()

	gt.Equal(t, ev.Ref, "refs/heads/master")
	gt.Equal(t, ev.After, "2b1f0c4e8a8d2d1f9f3c0e6b1a7d5c3e9f0a1b2c")
	gt.False(t, ev.Deleted)
	gt.Equal(t, ev.Repository.CloneURL, "https://github.com/org/infra-repo.git")
	gt.Equal(t, ev.Repository.Name, "infra-repo")
}

func TestParsePush_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ""},
		{name: "whitespace", payload: "  \n"},
		{name: "not JSON", payload: "ref=refs/heads/master"},
		{name: "wrong type", payload: `{"ref": 1}`},
		{name: "empty object", payload: `{}`},
		{name: "missing ref", payload: `{"after":"2b1f0c4e8a8d2d1f9f3c0e6b1a7d5c3e9f0a1b2c","repository":{"name":"infra-repo"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := event.ParsePush([]byte(tt.payload))
			gt.Error(t, err)
			gt.True(t, ev == nil)
			gt.True(t, goerr.HasTag(err, types.ErrTagInvalidEvent))
		})
	}
}

func TestFromWebhook(t *testing.T) {
	t.Run("push", func(t *testing.T) {
		ev, ok, err := event.FromWebhook("push", "delivery-1", []byte(pushPayload))
		gt.NoError(t, err).Required()
		gt.True(t, ok)
		gt.Equal(t, ev.ID, "delivery-1")
		gt.Equal(t, ev.Source, model.EventSourceGitHub)
		gt.Equal(t, ev.Repository.Name, "infra-repo")
	})

	t.Run("other event types are ignored", func(t *testing.T) {
		ev, ok, err := event.FromWebhook("ping", "delivery-2", []byte(`{"zen":"Keep it logically awesome."}`))
		gt.NoError(t, err)
		gt.False(t, ok)
		gt.True(t, ev == nil)
	})

	t.Run("broken push payload", func(t *testing.T) {
		_, ok, err := event.FromWebhook("push", "delivery-3", []byte(`{`))
		gt.Error(t, err)
		gt.False(t, ok)
	})
}

func TestFromSNSEvent(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		pushes, err := event.FromSNSEvent(events.SNSEvent{
			Records: []events.SNSEventRecord{
				{SNS: events.SNSEntity{MessageID: "msg-1", Message: pushPayload}},
			},
		})
		gt.NoError(t, err).Required()
		gt.A(t, pushes).Length(1)
		gt.Equal(t, pushes[0].ID, "msg-1")
		gt.Equal(t, pushes[0].Source, model.EventSourceSNS)
		gt.Equal(t, pushes[0].After, "2b1f0c4e8a8d2d1f9f3c0e6b1a7d5c3e9f0a1b2c")
	})

	t.Run("no records", func(t *testing.T) {
		_, err := event.FromSNSEvent(events.SNSEvent{})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagInvalidEvent))
	})

	t.Run("invalid message", func(t *testing.T) {
		_, err := event.FromSNSEvent(events.SNSEvent{
			Records: []events.SNSEventRecord{
				{SNS: events.SNSEntity{MessageID: "msg-1", Message: pushPayload}},
				{SNS: events.SNSEntity{MessageID: "msg-2", Message: "not json"}},
			},
		})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagInvalidEvent))
	})
}

func TestFromPayload(t *testing.T) {
	t.Run("bare push payload", func(t *testing.T) {
		pushes, err := event.FromPayload([]byte(pushPayload), model.EventSourceInvoke)
		gt.NoError(t, err).Required()
		gt.A(t, pushes).Length(1)
		gt.Equal(t, pushes[0].Source, model.EventSourceInvoke)
		gt.Equal(t, pushes[0].ID, "")
		gt.Equal(t, pushes[0].Repository.Name, "infra-repo")
	})

	t.Run("SNS envelope", func(t *testing.T) {
		envelope, err := json.Marshal(map[string]any{
			"Records": []map[string]any{
				{"Sns": map[string]any{"MessageId": "msg-9", "Message": pushPayload}},
			},
		})
		gt.NoError(t, err).Required()

		pushes, err := event.FromPayload(envelope, model.EventSourceInvoke)
		gt.NoError(t, err).Required()
		gt.A(t, pushes).Length(1)
		gt.Equal(t, pushes[0].ID, "msg-9")
		gt.Equal(t, pushes[0].Source, model.EventSourceInvoke)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := event.FromPayload([]byte("]["), model.EventSourceInvoke)
		gt.Error(t, err)
	})
}
