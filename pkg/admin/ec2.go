package admin

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// InstanceInfo is the subset of EC2 instance details shown next to brokers. It's
// informational only and never substitutes for the broker's rack.
type InstanceInfo struct {
	InstanceID       string
	InstanceType     string
	AvailabilityZone string
}

type describeInstancesAPI interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2.DescribeInstancesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInstancesOutput, error)
}

// InstanceLookup finds the EC2 instances behind broker hosts by private IP.
type InstanceLookup struct {
	client describeInstancesAPI
}

// NewInstanceLookup creates an InstanceLookup from the default AWS config chain.
func NewInstanceLookup(ctx context.Context) (*InstanceLookup, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &InstanceLookup{client: ec2.NewFromConfig(awsCfg)}, nil
}

// Instances returns the instance details keyed by private IP for the argument addresses.
func (l *InstanceLookup) Instances(
	ctx context.Context,
	ips []string,
) (map[string]InstanceInfo, error) {
	instancesMap := map[string]InstanceInfo{}
	if len(ips) == 0 {
		return instancesMap, nil
	}

	ipsMap := map[string]struct{}{}
	for _, ip := range ips {
		ipsMap[ip] = struct{}{}
	}

	resp, err := l.client.DescribeInstances(
		ctx,
		&ec2.DescribeInstancesInput{
			Filters: []ec2types.Filter{
				{
					Name:   aws.String("private-ip-address"),
					Values: ips,
				},
			},
		},
	)
	if err != nil {
		return instancesMap, err
	}

	for _, reservation := range resp.Reservations {
		for _, instance := range reservation.Instances {
			info := InstanceInfo{
				InstanceID:   aws.ToString(instance.InstanceId),
				InstanceType: string(instance.InstanceType),
			}
			if instance.Placement != nil {
				info.AvailabilityZone = aws.ToString(instance.Placement.AvailabilityZone)
			}

			for _, networkInterface := range instance.NetworkInterfaces {
				privateIP := aws.ToString(networkInterface.PrivateIpAddress)

				if _, ok := ipsMap[privateIP]; ok {
					instancesMap[privateIP] = info
				}
			}
		}
	}

	return instancesMap, nil
}
