package admin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/aws_msk_iam_v2"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	log "github.com/sirupsen/logrus"
)

// SASLMechanism is the name of a SASL mechanism that will be used for client authentication.
type SASLMechanism string

const (
	SASLMechanismAWSMSKIAM   SASLMechanism = "aws-msk-iam"
	SASLMechanismPlain       SASLMechanism = "plain"
	SASLMechanismScramSHA256 SASLMechanism = "scram-sha-256"
	SASLMechanismScramSHA512 SASLMechanism = "scram-sha-512"
)

// ConnectorConfig contains the configuration used to construct a connector.
type ConnectorConfig struct {
	BrokerAddr string
	TLS        TLSConfig
	SASL       SASLConfig
}

// TLSConfig stores the TLS-related configuration for a connection.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	ServerName string
	SkipVerify bool
}

// SASLConfig stores the SASL-related configuration for a connection.
type SASLConfig struct {
	Enabled   bool
	Mechanism SASLMechanism
	Username  string
	Password  string

	// SecretsManagerArn, if set, points to a secret with a JSON body of the form
	// {"username": "...", "password": "..."} that replaces Username and Password.
	SecretsManagerArn string
}

// Connector is a wrapper around the low-level, kafka-go dialer and client.
type Connector struct {
	Config      ConnectorConfig
	Dialer      *kafka.Dialer
	KafkaClient *kafka.Client
}

// secretGetter is the subset of the secrets manager API used by the connector.
type secretGetter interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

type saslSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewConnector constructs a new Connector instance given the argument config. No
// connections are opened until the client is used.
func NewConnector(ctx context.Context, config ConnectorConfig) (*Connector, error) {
	connector := &Connector{
		Config: config,
	}

	var mechanismClient sasl.Mechanism
	var tlsConfig *tls.Config
	var err error

	if config.SASL.Enabled {
		if config.SASL.SecretsManagerArn != "" {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, err
			}
			err = resolveSASLSecret(ctx, secretsmanager.NewFromConfig(awsCfg), &config.SASL)
			if err != nil {
				return nil, err
			}
			connector.Config.SASL = config.SASL
		}

		switch config.SASL.Mechanism {
		case SASLMechanismAWSMSKIAM:
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, err
			}
			mechanismClient = aws_msk_iam_v2.NewMechanism(awsCfg)
		case SASLMechanismPlain:
			mechanismClient = plain.Mechanism{
				Username: config.SASL.Username,
				Password: config.SASL.Password,
			}
		case SASLMechanismScramSHA256:
			mechanismClient, err = scram.Mechanism(
				scram.SHA256,
				config.SASL.Username,
				config.SASL.Password,
			)
			if err != nil {
				return nil, err
			}
		case SASLMechanismScramSHA512:
			mechanismClient, err = scram.Mechanism(
				scram.SHA512,
				config.SASL.Username,
				config.SASL.Password,
			)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("Unrecognized SASL mechanism: %s", config.SASL.Mechanism)
		}
	}

	if config.TLS.Enabled {
		tlsConfig, err = loadTLSConfig(config.TLS)
		if err != nil {
			return nil, err
		}
	}

	if !config.TLS.Enabled && !config.SASL.Enabled {
		connector.Dialer = kafka.DefaultDialer
	} else {
		connector.Dialer = &kafka.Dialer{
			SASLMechanism: mechanismClient,
			Timeout:       10 * time.Second,
			TLS:           tlsConfig,
		}
	}

	log.Debugf("Connecting to cluster on address %s with TLS enabled=%v, SASL enabled=%v",
		config.BrokerAddr,
		config.TLS.Enabled,
		config.SASL.Enabled,
	)
	connector.KafkaClient = &kafka.Client{
		Addr: kafka.TCP(config.BrokerAddr),
		Transport: &kafka.Transport{
			Dial:        connector.Dialer.DialFunc,
			SASL:        mechanismClient,
			TLS:         tlsConfig,
			MetadataTTL: 10 * time.Minute,
		},
	}

	return connector, nil
}

func loadTLSConfig(config TLSConfig) (*tls.Config, error) {
	var certs []tls.Certificate
	var caCertPool *x509.CertPool

	if config.CertPath != "" && config.KeyPath != "" {
		log.Debugf(
			"Loading key pair from %s and %s",
			config.CertPath,
			config.KeyPath,
		)
		cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	if config.CACertPath != "" {
		log.Debugf("Adding CA certs from %s", config.CACertPath)
		caCertPool = x509.NewCertPool()
		caCertContents, err := os.ReadFile(config.CACertPath)
		if err != nil {
			return nil, err
		}
		if ok := caCertPool.AppendCertsFromPEM(caCertContents); !ok {
			return nil, fmt.Errorf(
				"Could not append CA certs from %s",
				config.CACertPath,
			)
		}
	}

	return &tls.Config{
		Certificates:       certs,
		RootCAs:            caCertPool,
		InsecureSkipVerify: config.SkipVerify,
		ServerName:         config.ServerName,
	}, nil
}

func resolveSASLSecret(ctx context.Context, client secretGetter, config *SASLConfig) error {
	log.Debugf("Fetching SASL credentials from %s", config.SecretsManagerArn)

	resp, err := client.GetSecretValue(
		ctx,
		&secretsmanager.GetSecretValueInput{
			SecretId: aws.String(config.SecretsManagerArn),
		},
	)
	if err != nil {
		return fmt.Errorf("Error getting secret %s: %w", config.SecretsManagerArn, err)
	}

	secret := saslSecret{}
	if err := json.Unmarshal([]byte(aws.ToString(resp.SecretString)), &secret); err != nil {
		return fmt.Errorf("Secret %s is not valid JSON: %w", config.SecretsManagerArn, err)
	}
	if secret.Username == "" || secret.Password == "" {
		return fmt.Errorf("Secret %s is missing a username or password", config.SecretsManagerArn)
	}

	config.Username = secret.Username
	config.Password = secret.Password
	return nil
}

// SASLNameToMechanism converts the argument SASL mechanism name string to a valid instance of
// the SASLMechanism enum.
func SASLNameToMechanism(name string) (SASLMechanism, error) {
	normalizedName := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	mechanism := SASLMechanism(normalizedName)

	switch mechanism {
	case SASLMechanismAWSMSKIAM,
		SASLMechanismPlain,
		SASLMechanismScramSHA256,
		SASLMechanismScramSHA512:
		return mechanism, nil
	default:
		return mechanism, fmt.Errorf(
			"SASL mechanism '%s' is not valid; choices are AWS-MSK-IAM, PLAIN, SCRAM-SHA-256, and SCRAM-SHA-512",
			mechanism,
		)
	}
}
