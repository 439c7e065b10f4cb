package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/tchimanga/darasa/core"
)

// snsService hands accepted submissions off to the grading pipeline
// by publishing them on an SNS topic.
type snsService struct {
	client   *sns.Client
	topicARN string
	logger   core.Logger
}

var _ core.QueueService = (*snsService)(nil)

func NewSNSService(logger core.Logger, conf *core.Config) (*snsService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(conf.Queue.Region))
	if err != nil {
		return nil, err
	}
	return &snsService{
		client:   sns.NewFromConfig(cfg),
		topicARN: conf.Queue.SubmissionTopicARN,
		logger:   logger,
	}, nil
}

func (svc snsService) PublishSubmissionCreated(event core.SubmissionEvent) {
	go func() {
		payload, err := json.Marshal(event)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("marshaling submission event: %v", err), err)
			return
		}
		_, err = svc.client.Publish(context.Background(), &sns.PublishInput{
			Message:  aws.String(string(payload)),
			TopicArn: aws.String(svc.topicARN),
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("publishing submission event: %v", err), err)
		}
	}()
}
