package dispatch

// Step names one structural rewrite rule. The upgrade package binds each
// step to its implementation; the ordering per kind lives here.
type Step string

const (
	StepIdentity    Step = "identity"
	StepContainment Step = "containment"
	StepBehavior    Step = "behavior"
	StepStart       Step = "start"
	StepDescription Step = "description"
	StepMetadata    Step = "metadata"
	StepAttribution Step = "attribution"
	StepRelated     Step = "related"
	StepServices    Step = "services"
	StepAnnotations Step = "annotations"
	StepBody        Step = "body"
	StepTarget      Step = "target"
	StepStylesheet  Step = "stylesheet"
	StepSupplement  Step = "supplementary"
	StepServiceType Step = "service_type"
	StepResource    Step = "resource"
	StepProperties  Step = "properties"
)

var descriptive = []Step{StepMetadata, StepDescription, StepAttribution, StepRelated}

var plans = map[Kind][]Step{
	Manifest:       concat([]Step{StepIdentity, StepContainment, StepBehavior, StepStart}, descriptive, []Step{StepServices, StepProperties}),
	Sequence:       concat([]Step{StepIdentity, StepContainment, StepBehavior, StepStart}, descriptive, []Step{StepServices, StepProperties}),
	Canvas:         concat([]Step{StepIdentity, StepContainment, StepAnnotations, StepBehavior}, descriptive, []Step{StepServices, StepProperties}),
	AnnotationList: concat([]Step{StepIdentity, StepContainment}, descriptive, []Step{StepServices, StepProperties}),
	Annotation:     concat([]Step{StepIdentity, StepBody, StepTarget, StepStylesheet, StepBehavior}, descriptive, []Step{StepServices, StepProperties}),
	Range:          concat([]Step{StepIdentity, StepContainment, StepStart, StepSupplement}, descriptive, []Step{StepServices, StepProperties}),
	Collection:     concat([]Step{StepIdentity, StepContainment, StepBehavior}, descriptive, []Step{StepServices, StepProperties}),
	Layer:          concat([]Step{StepIdentity, StepBehavior}, descriptive, []Step{StepServices, StepProperties}),
	Service:        {StepIdentity, StepServiceType, StepServices, StepProperties},
	Resource:       concat([]Step{StepIdentity, StepResource, StepBehavior}, descriptive, []Step{StepServices, StepProperties}),
	Unknown:        {StepIdentity, StepServices, StepProperties},
}

// Plan returns the ordered rewrite steps for kind. The slice is a copy.
func Plan(kind Kind) []Step {
	steps := plans[kind]
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

func concat(parts ...[]Step) []Step {
	var out []Step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
