package transform

import (
	"regexp"
	"strings"
)

const (
	// DefaultTimeout is how long, in minutes, Dynatrace keeps an event open without a refresh.
	DefaultTimeout = 60 * 24

	// DefaultLocale selects the event description used in the title.
	DefaultLocale = "en_US"

	// DefaultPartition is used for entity ARNs. Other partitions are aws-cn and aws-us-gov.
	DefaultPartition = "aws"

	// PropertyType marks the origin of the event in its properties.
	PropertyType = "awsHealthEvent"

	missingDescription = "-"
)

var (
	entityARNTemplates = map[string]string{
		"ec2": "arn:{{partition}}:ec2:{{region}}:{{account}}:instance/{{resource}}",
	}

	entitySelectorTemplates = map[string]string{
		"ec2": `type("EC2_INSTANCE"),arn({{arns}})`,
	}
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// MapEventType maps an AWS Health eventTypeCategory to a Dynatrace event type.
func MapEventType(category string) (EventType, error) {
	switch category {
	case "issue":
		return EventTypeAvailability, nil
	case "accountNotification", "scheduledChange":
		return EventTypeCustomAnnotation, nil
	default:
		return "", &UnmappedCategoryError{Category: category}
	}
}

// DefaultEntitySelector selects the AWS credentials entity monitoring the given account.
func DefaultEntitySelector(account string) string {
	return `TYPE("AWS_CREDENTIALS"),awsAccountId("` + account + `")`
}

func entityARNTemplate(service string) (string, bool) {
	t, ok := entityARNTemplates[strings.ToLower(service)]
	return t, ok
}

func entitySelectorTemplate(service string) (string, bool) {
	t, ok := entitySelectorTemplates[strings.ToLower(service)]
	return t, ok
}

// render substitutes {{name}} placeholders. Unknown names render as the empty string.
func render(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return vars[name]
	})
}
