package config

import "github.com/urfave/cli/v3"

// Server holds server configuration
type Server struct {
	Addr          string
	WebhookSecret string
	SNSTopicARNs  []string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("PLAYPACK_ADDR"),
		},
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret, /hooks/github is disabled if empty",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("PLAYPACK_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.StringSliceFlag{
			Name:        "sns-topic-arn",
			Usage:       "SNS topic accepted by /hooks/sns, repeatable. The endpoint is disabled if none is set",
			Destination: &c.SNSTopicARNs,
			Sources:     cli.EnvVars("PLAYPACK_SNS_TOPIC_ARNS"),
		},
	}
}
