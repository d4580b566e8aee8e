package main

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/kss"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/notify"
	"github.com/flowlabs-tech/labflow/flow"
)

// Service holds the configuration for this service
//
// The data API URL and service key are deliberately not flagged required:
// when they are missing we start anyway, log the condition and let every
// data request fail, rather than silently operating unauthenticated.
type Service struct {
	DataAPIURL string `env:"DATA_API_URL" description:"base URL of the managed database's REST interface"`
	ServiceKey string `env:"DATA_SERVICE_KEY" description:"privileged service key for the data API"`
	AgentURL   string `env:"AGENT_API_URL,default=https://render-fastapi-flow.onrender.com" description:"base URL of the external processing service"`
	Port       string `env:"PORT,default=3000" description:"the port to listen on"`

	KSSDriver    kss.DriverType `env:"KSS_DRIVER,default=Local" description:"storage driver, Local or AWSS3"`
	KSSBasePath  string         `env:"KSS_BASE_PATH,default=kss-data" description:"base folder of the local storage driver"`
	PublicURL    string         `env:"PUBLIC_URL,default=http://localhost:3000" description:"public URL of this service, used for local signed URLs"`
	S3Bucket     string         `env:"KSS_S3_BUCKET,default=records" description:"bucket for uploaded record payloads"`
	S3Region     string         `env:"KSS_S3_REGION,default=eu-central-1" description:"AWS region of the bucket"`
	S3AccessID   string         `env:"KSS_S3_ACCESS_ID" description:"AWS access key id"`
	S3AccessKey  string         `env:"KSS_S3_ACCESS_KEY" description:"AWS secret access key"`
	KafkaBrokers string         `env:"KAFKA_BROKERS" description:"comma separated kafka brokers for resource notifications, optional"`
	KafkaPrefix  string         `env:"KAFKA_TOPIC_PREFIX,default=labflow" description:"topic prefix for resource notifications"`
}

func main() {
	logger.InitLogger(logrus.InfoLevel)

	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	if service.DataAPIURL == "" || service.ServiceKey == "" {
		logger.Default().Errorln("missing DATA_API_URL or DATA_SERVICE_KEY environment variables")
	}

	router := mux.NewRouter()
	logger.AddRequestID(router)

	var driver kss.Driver
	var err error
	switch service.KSSDriver {
	case kss.DriverTypeAWSS3:
		driver, err = kss.NewS3(kss.S3Configuration{
			AWSBucketName: service.S3Bucket,
			AWSRegion:     service.S3Region,
			AccessID:      service.S3AccessID,
			AccessKey:     service.S3AccessKey,
		})
	case kss.DriverTypeLocal:
		publicURL, parseErr := url.Parse(service.PublicURL)
		if parseErr != nil {
			panic(parseErr)
		}
		driver, err = kss.NewLocalFilesystem(router, service.KSSBasePath, *publicURL, nil)
	case kss.None:
		// upload endpoint will report a configuration error
	}
	if err != nil {
		panic(err)
	}

	var notifier core.Notifier
	if service.KafkaBrokers != "" {
		kafkaNotifier := notify.NewKafka(strings.Split(service.KafkaBrokers, ","), service.KafkaPrefix)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	flow.New(&flow.Builder{
		DB:       dbrest.New(service.DataAPIURL, service.ServiceKey),
		Router:   router,
		KSS:      driver,
		Notifier: notifier,
		AgentURL: service.AgentURL,
	})

	logger.Default().Infoln("listen on port :" + service.Port)
	http.ListenAndServe(":"+service.Port, router)
}
