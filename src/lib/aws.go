package lib

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"prestar/src/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func awsGetSdkClient() (*aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return nil, err
	}
	return &cfg, nil
}

func AWSGetSQSClient() *sqs.Client {
	cfg, err := awsGetSdkClient()
	if err != nil {
		log.Printf("Failed to initialize SQS client: %s\n", err.Error())
		return nil
	}
	client := sqs.NewFromConfig(*cfg)
	return client
}

// SQSProduceMessage publishes to the queue matching the topic name. Queue
// names mirror kafka topics so the relay can swap transports per env.
func SQSProduceMessage(topic string, payload *types.JSONB) error {
	client := AWSGetSQSClient()
	if client == nil {
		return os.ErrInvalid
	}
	qurl, err := client.GetQueueUrl(context.TODO(), &sqs.GetQueueUrlInput{
		QueueName: aws.String(topic),
	})
	if err != nil {
		log.Printf("[SQS] Failed to retrieve queue URL for %s: %s\n", topic, err.Error())
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = client.SendMessage(context.TODO(), &sqs.SendMessageInput{
		QueueUrl:    qurl.QueueUrl,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		log.Printf("[SQS] Error sending message to %s: %s\n", topic, err.Error())
		return err
	}
	return nil
}

func SQSConsumer(qname string, handler types.Handler) {
	client := AWSGetSQSClient()
	if client == nil {
		return
	}
	qurl, err := client.GetQueueUrl(context.TODO(), &sqs.GetQueueUrlInput{
		QueueName: aws.String(qname),
	})
	if err != nil {
		log.Printf("[SQS] Failed to retrieve queue URL for %s: %s\n", qname, err.Error())
		return
	}
	messagesChan := make(chan *sqsTypes.Message, 5)
	go func(chn chan<- *sqsTypes.Message) {
		for {
			output, err := client.ReceiveMessage(context.Background(), &sqs.ReceiveMessageInput{
				QueueUrl:            qurl.QueueUrl,
				WaitTimeSeconds:     20,
				MaxNumberOfMessages: 5,
			})
			if err != nil {
				log.Printf("[SQS] Error receiving messages: %s\n", err.Error())
				return
			}
			for _, m := range output.Messages {
				chn <- &m
			}
		}
	}(messagesChan)

	go func() {
		for m := range messagesChan {
			handler(*m.Body)
			deleteMessage(client, qurl.QueueUrl, m)
		}
	}()
}

func deleteMessage(c *sqs.Client, qurl *string, msg *sqsTypes.Message) {
	_, err := c.DeleteMessage(context.TODO(), &sqs.DeleteMessageInput{
		QueueUrl:      qurl,
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		log.Printf("[SQS] Error deleting message from queue: %s\n", err.Error())
		return
	}
}
