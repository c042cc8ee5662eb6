package event

import (
	"encoding/json"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const pushEventType = "push"

// ParsePush decodes a GitHub push payload. The same payload arrives as a
// webhook body and as the message of an SNS notification.
func ParsePush(payload []byte) (*model.PushEvent, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, goerr.New("push payload is empty", goerr.T(types.ErrTagInvalidEvent))
	}

	parsed, err := github.ParseWebHook(pushEventType, payload)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid push payload", goerr.T(types.ErrTagInvalidEvent))
	}

	push, ok := parsed.(*github.PushEvent)
	if !ok {
		return nil, goerr.New("unexpected payload type", goerr.T(types.ErrTagInvalidEvent))
	}
	if push.GetRef() == "" {
		return nil, goerr.New("push payload has no ref", goerr.T(types.ErrTagInvalidEvent))
	}

	return &model.PushEvent{
		Ref:     push.GetRef(),
		After:   push.GetAfter(),
		Deleted: push.GetDeleted(),
		Repository: model.Repository{
			CloneURL: push.GetRepo().GetCloneURL(),
			Name:     push.GetRepo().GetName(),
		},
	}, nil
}

// FromWebhook converts a GitHub webhook delivery. ok is false when the
// delivery is not a push event.
func FromWebhook(eventType, deliveryID string, payload []byte) (ev *model.PushEvent, ok bool, err error) {
	if eventType != pushEventType {
		return nil, false, nil
	}

	ev, err = ParsePush(payload)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to parse webhook", goerr.V("delivery_id", deliveryID))
	}
	ev.ID = deliveryID
	ev.Source = model.EventSourceGitHub

	return ev, true, nil
}

// FromSNSMessage converts the message of an SNS notification
func FromSNSMessage(messageID, message string, source model.EventSource) (*model.PushEvent, error) {
	ev, err := ParsePush([]byte(message))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse SNS message", goerr.V("message_id", messageID))
	}
	ev.ID = messageID
	ev.Source = source

	return ev, nil
}

// FromSNSEvent converts every record of an SNS event delivered to Lambda
func FromSNSEvent(snsEvent events.SNSEvent) ([]*model.PushEvent, error) {
	if len(snsEvent.Records) == 0 {
		return nil, goerr.New("SNS event has no records", goerr.T(types.ErrTagInvalidEvent))
	}

	pushes := make([]*model.PushEvent, 0, len(snsEvent.Records))
	for i, record := range snsEvent.Records {
		ev, err := FromSNSMessage(record.SNS.MessageID, record.SNS.Message, model.EventSourceSNS)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid SNS record", goerr.V("index", i))
		}
		pushes = append(pushes, ev)
	}

	return pushes, nil
}

// FromPayload accepts either an SNS event as delivered to Lambda or a bare
// push payload, as saved by hand for a local run
func FromPayload(payload []byte, source model.EventSource) ([]*model.PushEvent, error) {
	var snsEvent events.SNSEvent
	if err := json.Unmarshal(payload, &snsEvent); err == nil && len(snsEvent.Records) > 0 {
		pushes, err := FromSNSEvent(snsEvent)
		if err != nil {
			return nil, err
		}
		for _, ev := range pushes {
			ev.Source = source
		}
		return pushes, nil
	}

	ev, err := ParsePush(payload)
	if err != nil {
		return nil, err
	}
	ev.Source = source
	return []*model.PushEvent{ev}, nil
}
