// Package stack manages the CloudFormation stack holding the site resources.
package stack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/logging"
	"github.com/lex00/wetwire-site-go/internal/metrics"
	"github.com/lex00/wetwire-site-go/internal/site"
	"github.com/lex00/wetwire-site-go/internal/template"
)

// DefaultTimeout bounds a create, update or delete. CloudFront distributions
// routinely take several minutes to deploy.
const DefaultTimeout = 60 * time.Minute

// ErrStackNotFound is returned when the stack does not exist.
var ErrStackNotFound = errors.New("stack not found")

// Action is what Deploy did to the stack.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// Result describes a finished deploy.
type Result struct {
	Action  Action
	StackID string
}

// Manager drives one stack.
type Manager struct {
	Client    awsapi.CloudFormationAPI
	StackName string
	// Timeout bounds each wait. Zero means DefaultTimeout.
	Timeout time.Duration
	// MinDelay and MaxDelay tune the waiter polling; zero keeps SDK defaults.
	MinDelay time.Duration
	MaxDelay time.Duration
	Metrics  *metrics.Metrics
}

// Describe returns the stack, or ErrStackNotFound.
func (m *Manager) Describe(ctx context.Context) (*types.Stack, error) {
	out, err := m.Client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(m.StackName),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrStackNotFound, m.StackName)
		}
		return nil, fmt.Errorf("describing stack %s: %w", m.StackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStackNotFound, m.StackName)
	}
	return &out.Stacks[0], nil
}

// Deploy creates the stack or updates it to tmpl and waits for completion.
// An update with no changes is reported as ActionUnchanged.
func (m *Manager) Deploy(ctx context.Context, tmpl *wetwire.Template, params map[string]string, tags map[string]string) (Result, error) {
	start := time.Now()
	defer m.Metrics.Time("stack_deploy", start)
	log := logging.Ctx(ctx)

	body, err := template.ToJSON(tmpl)
	if err != nil {
		return Result{}, fmt.Errorf("encoding template: %w", err)
	}

	existing, err := m.Describe(ctx)
	switch {
	case errors.Is(err, ErrStackNotFound):
		log.Info().Str("stack", m.StackName).Msg("creating stack")
		return m.create(ctx, string(body), params, tags)
	case err != nil:
		return Result{}, err
	}

	switch existing.StackStatus {
	case types.StackStatusRollbackComplete, types.StackStatusRollbackFailed, types.StackStatusDeleteFailed:
		return Result{}, fmt.Errorf("stack %s is in %s and cannot be updated; destroy it first", m.StackName, existing.StackStatus)
	}
	if strings.HasSuffix(string(existing.StackStatus), "_IN_PROGRESS") {
		return Result{}, fmt.Errorf("stack %s has an operation in progress (%s)", m.StackName, existing.StackStatus)
	}

	log.Info().Str("stack", m.StackName).Str("status", string(existing.StackStatus)).Msg("updating stack")
	return m.update(ctx, aws.ToString(existing.StackId), string(body), params, tags)
}

func (m *Manager) create(ctx context.Context, body string, params, tags map[string]string) (Result, error) {
	out, err := m.Client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:          aws.String(m.StackName),
		TemplateBody:       aws.String(body),
		Parameters:         parameters(params),
		Tags:               stackTags(tags),
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		m.Metrics.Error("stack_create")
		return Result{}, fmt.Errorf("creating stack %s: %w", m.StackName, err)
	}

	waiter := cloudformation.NewStackCreateCompleteWaiter(m.Client, func(o *cloudformation.StackCreateCompleteWaiterOptions) {
		m.tune(&o.MinDelay, &o.MaxDelay)
	})
	if err := waiter.Wait(ctx, m.describeInput(), m.timeout()); err != nil {
		m.Metrics.Error("stack_create")
		return Result{}, m.failure(ctx, "create", err)
	}
	return Result{Action: ActionCreated, StackID: aws.ToString(out.StackId)}, nil
}

func (m *Manager) update(ctx context.Context, stackID, body string, params, tags map[string]string) (Result, error) {
	_, err := m.Client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:          aws.String(m.StackName),
		TemplateBody:       aws.String(body),
		Parameters:         parameters(params),
		Tags:               stackTags(tags),
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		if isNoUpdates(err) {
			logging.Ctx(ctx).Info().Str("stack", m.StackName).Msg("stack is up to date")
			return Result{Action: ActionUnchanged, StackID: stackID}, nil
		}
		m.Metrics.Error("stack_update")
		return Result{}, fmt.Errorf("updating stack %s: %w", m.StackName, err)
	}

	waiter := cloudformation.NewStackUpdateCompleteWaiter(m.Client, func(o *cloudformation.StackUpdateCompleteWaiterOptions) {
		m.tune(&o.MinDelay, &o.MaxDelay)
	})
	if err := waiter.Wait(ctx, m.describeInput(), m.timeout()); err != nil {
		m.Metrics.Error("stack_update")
		return Result{}, m.failure(ctx, "update", err)
	}
	return Result{Action: ActionUpdated, StackID: stackID}, nil
}

// Delete removes the stack and waits until it is gone. A missing stack is
// not an error.
func (m *Manager) Delete(ctx context.Context) error {
	start := time.Now()
	defer m.Metrics.Time("stack_delete", start)

	if _, err := m.Describe(ctx); err != nil {
		if errors.Is(err, ErrStackNotFound) {
			return nil
		}
		return err
	}

	_, err := m.Client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName:          aws.String(m.StackName),
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		m.Metrics.Error("stack_delete")
		return fmt.Errorf("deleting stack %s: %w", m.StackName, err)
	}

	waiter := cloudformation.NewStackDeleteCompleteWaiter(m.Client, func(o *cloudformation.StackDeleteCompleteWaiterOptions) {
		m.tune(&o.MinDelay, &o.MaxDelay)
	})
	if err := waiter.Wait(ctx, m.describeInput(), m.timeout()); err != nil {
		m.Metrics.Error("stack_delete")
		return m.failure(ctx, "delete", err)
	}
	return nil
}

// Outputs reads the deployed stack outputs.
func (m *Manager) Outputs(ctx context.Context) (wetwire.SiteOutputs, error) {
	st, err := m.Describe(ctx)
	if err != nil {
		return wetwire.SiteOutputs{}, err
	}

	values := make(map[string]string, len(st.Outputs))
	for _, o := range st.Outputs {
		values[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}

	var missing []string
	get := func(key string) string {
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
		}
		return v
	}

	out := wetwire.SiteOutputs{
		S3BucketName:             get(site.OutputBucketName),
		S3WebsiteEndpoint:        get(site.OutputWebsiteEndpoint),
		CloudFrontDomainName:     get(site.OutputDomainName),
		CloudFrontDistributionID: get(site.OutputDistributionID),
		WebsiteURL:               get(site.OutputWebsiteURL),
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("stack %s (%s) is missing outputs: %s", m.StackName, st.StackStatus, strings.Join(missing, ", "))
	}
	return out, nil
}

// Template returns the template body the stack was last deployed with.
func (m *Manager) Template(ctx context.Context) (string, error) {
	out, err := m.Client.GetTemplate(ctx, &cloudformation.GetTemplateInput{
		StackName:     aws.String(m.StackName),
		TemplateStage: types.TemplateStageOriginal,
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrStackNotFound, m.StackName)
		}
		return "", fmt.Errorf("fetching template of %s: %w", m.StackName, err)
	}
	return aws.ToString(out.TemplateBody), nil
}

// FailureReasons returns the status reasons of the most recent failed
// resource events, newest first.
func (m *Manager) FailureReasons(ctx context.Context, limit int) ([]string, error) {
	out, err := m.Client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(m.StackName),
	})
	if err != nil {
		return nil, err
	}

	events := out.StackEvents
	sort.SliceStable(events, func(i, j int) bool {
		return aws.ToTime(events[i].Timestamp).After(aws.ToTime(events[j].Timestamp))
	})

	var reasons []string
	for _, e := range events {
		if !strings.HasSuffix(string(e.ResourceStatus), "_FAILED") {
			continue
		}
		reason := aws.ToString(e.ResourceStatusReason)
		if reason == "" || strings.Contains(reason, "Resource creation cancelled") {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", aws.ToString(e.LogicalResourceId), reason))
		if len(reasons) == limit {
			break
		}
	}
	return reasons, nil
}

// failure decorates a waiter error with the reasons CloudFormation recorded.
func (m *Manager) failure(ctx context.Context, op string, err error) error {
	reasons, evErr := m.FailureReasons(ctx, 3)
	if evErr != nil || len(reasons) == 0 {
		return fmt.Errorf("stack %s %s failed: %w", m.StackName, op, err)
	}
	return fmt.Errorf("stack %s %s failed: %s: %w", m.StackName, op, strings.Join(reasons, "; "), err)
}

func (m *Manager) describeInput() *cloudformation.DescribeStacksInput {
	return &cloudformation.DescribeStacksInput{StackName: aws.String(m.StackName)}
}

func (m *Manager) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return DefaultTimeout
}

func (m *Manager) tune(minDelay, maxDelay *time.Duration) {
	if m.MinDelay > 0 {
		*minDelay = m.MinDelay
	}
	if m.MaxDelay > 0 {
		*maxDelay = m.MaxDelay
	}
	if *maxDelay < *minDelay {
		*maxDelay = *minDelay
	}
}

func parameters(params map[string]string) []types.Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Parameter{ParameterKey: aws.String(k), ParameterValue: aws.String(params[k])})
	}
	return out
}

func stackTags(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

// isNotFound matches the ValidationError CloudFormation returns for a
// missing stack.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

// isNoUpdates matches the ValidationError UpdateStack returns when the
// template and parameters are unchanged.
func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}
