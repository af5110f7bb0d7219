package services

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends an outbound message on the messaging channel. Failures are
// reported to the caller, never fatal to a pipeline run.
type Notifier interface {
	Send(to, body string) error
}

// TwilioNotifier sends messages through the Twilio REST API.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioNotifier returns nil when the channel is not configured; callers
// treat a nil Notifier as "messaging disabled".
func NewTwilioNotifier(accountSID, authToken, from string) *TwilioNotifier {
	if accountSID == "" || authToken == "" || from == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{client: client, from: from}
}

func (n *TwilioNotifier) Send(to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	return nil
}
