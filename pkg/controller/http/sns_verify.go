package http

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 SignatureVersion 1 is SHA1 based
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"hash"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// SNS only signs with certificates and sends confirmations from these hosts
var snsHostPattern = regexp.MustCompile(`^sns\.[a-z0-9-]+\.amazonaws\.com(\.cn)?$`)

// snsMessage is the JSON body SNS posts to HTTP(S) subscribers
type snsMessage struct {
	Type             string `json:"Type"`
	MessageID        string `json:"MessageId"`
	Token            string `json:"Token,omitempty"`
	TopicArn         string `json:"TopicArn"`
	Subject          string `json:"Subject,omitempty"`
	Message          string `json:"Message"`
	SubscribeURL     string `json:"SubscribeURL,omitempty"`
	Timestamp        string `json:"Timestamp"`
	SignatureVersion string `json:"SignatureVersion"`
	Signature        string `json:"Signature"`
	SigningCertURL   string `json:"SigningCertURL"`
}

const (
	snsTypeNotification             = "Notification"
	snsTypeSubscriptionConfirmation = "SubscriptionConfirmation"
	snsTypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// signingString builds the canonical string SNS signs. Field order is fixed
// and optional fields are left out when empty.
func (m *snsMessage) signingString() (string, error) {
	type field struct{ key, value string }

	var fields []field
	switch m.Type {
	case snsTypeNotification:
		fields = []field{
			{"Message", m.Message},
			{"MessageId", m.MessageID},
			{"Subject", m.Subject},
			{"Timestamp", m.Timestamp},
			{"TopicArn", m.TopicArn},
			{"Type", m.Type},
		}
	case snsTypeSubscriptionConfirmation, snsTypeUnsubscribeConfirmation:
		fields = []field{
			{"Message", m.Message},
			{"MessageId", m.MessageID},
			{"SubscribeURL", m.SubscribeURL},
			{"Timestamp", m.Timestamp},
			{"Token", m.Token},
			{"TopicArn", m.TopicArn},
			{"Type", m.Type},
		}
	default:
		return "", goerr.New("unknown SNS message type", goerr.V("type", m.Type))
	}

	var b strings.Builder
	for _, f := range fields {
		if f.key == "Subject" && f.value == "" {
			continue
		}
		b.WriteString(f.key)
		b.WriteString("\n")
		b.WriteString(f.value)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// snsVerifier checks SNS message signatures against the signing certificate
type snsVerifier struct {
	client      *http.Client
	hostPattern *regexp.Regexp

	mutex sync.Mutex
	certs map[string]*x509.Certificate
}

func newSNSVerifier() *snsVerifier {
	return &snsVerifier{
		client:      http.DefaultClient,
		hostPattern: snsHostPattern,
		certs:       make(map[string]*x509.Certificate),
	}
}

// checkURL accepts only https URLs on SNS hosts
func (v *snsVerifier) checkURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid URL", goerr.V("url", raw))
	}
	if u.Scheme != "https" || !v.hostPattern.MatchString(u.Hostname()) {
		return nil, goerr.New("URL is not an SNS endpoint", goerr.V("url", raw))
	}
	return u, nil
}

func (v *snsVerifier) verify(ctx context.Context, msg *snsMessage) error {
	var (
		hashFunc crypto.Hash
		h        hash.Hash
	)
	switch msg.SignatureVersion {
	case "1":
		hashFunc, h = crypto.SHA1, sha1.New() // #nosec G401
	case "2":
		hashFunc, h = crypto.SHA256, sha256.New()
	default:
		return goerr.New("unsupported SNS signature version", goerr.V("version", msg.SignatureVersion))
	}

	signature, err := base64.StdEncoding.DecodeString(msg.Signature)
	if err != nil {
		return goerr.Wrap(err, "SNS signature is not valid base64")
	}

	signing, err := msg.signingString()
	if err != nil {
		return err
	}

	cert, err := v.certificate(ctx, msg.SigningCertURL)
	if err != nil {
		return err
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return goerr.New("SNS signing certificate does not hold an RSA key", goerr.V("url", msg.SigningCertURL))
	}

	h.Write([]byte(signing))
	if err := rsa.VerifyPKCS1v15(pub, hashFunc, h.Sum(nil), signature); err != nil {
		return goerr.Wrap(err, "SNS signature mismatch", goerr.V("message_id", msg.MessageID))
	}

	return nil
}

// certificate returns the signing certificate at certURL, fetching it once
func (v *snsVerifier) certificate(ctx context.Context, certURL string) (*x509.Certificate, error) {
	u, err := v.checkURL(certURL)
	if err != nil {
		return nil, err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	if cert, ok := v.certs[u.String()]; ok {
		return cert, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create certificate request")
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch SNS signing certificate", goerr.V("url", certURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status fetching SNS signing certificate",
			goerr.V("url", certURL),
			goerr.V("status", resp.StatusCode),
		)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read SNS signing certificate")
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, goerr.New("SNS signing certificate is not PEM", goerr.V("url", certURL))
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse SNS signing certificate", goerr.V("url", certURL))
	}

	v.certs[u.String()] = cert
	return cert, nil
}

// confirm visits the SubscribeURL of a subscription confirmation
func (v *snsVerifier) confirm(ctx context.Context, msg *snsMessage) error {
	u, err := v.checkURL(msg.SubscribeURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create confirmation request")
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to confirm SNS subscription", goerr.V("topic_arn", msg.TopicArn))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return goerr.New("SNS subscription confirmation rejected",
			goerr.V("topic_arn", msg.TopicArn),
			goerr.V("status", resp.StatusCode),
		)
	}
	return nil
}
