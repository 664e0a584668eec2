package mutation

import "github.com/emilianohg/internhub/internal/models"

type Action string

const (
	ActionSchedule Action = "schedule"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionPublish  Action = "publish"
	ActionPause    Action = "pause"
	ActionExpire   Action = "expire"
)

var actionLabels = map[Action]string{
	ActionSchedule: "面談へ進める",
	ActionAccept:   "合格にする",
	ActionReject:   "不合格にする",
	ActionPublish:  "公開する",
	ActionPause:    "一時停止",
	ActionExpire:   "掲載終了",
}

// Label is the button text for the action.
func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

type Transition struct {
	From   string
	Action Action
	To     string
}

// Workflow is the set of status changes a user may trigger. Anything not
// listed is refused, and there are no automatic transitions.
type Workflow struct {
	transitions []Transition
}

var ApplicationWorkflow = Workflow{transitions: []Transition{
	{models.StatusScreening, ActionSchedule, models.StatusInterview},
	{models.StatusScreening, ActionReject, models.StatusRejected},
	{models.StatusInterview, ActionAccept, models.StatusAccepted},
	{models.StatusInterview, ActionReject, models.StatusRejected},
}}

var JobWorkflow = Workflow{transitions: []Transition{
	{models.JobDraft, ActionPublish, models.JobPublished},
	{models.JobPublished, ActionPause, models.JobPaused},
	{models.JobPaused, ActionPublish, models.JobPublished},
	{models.JobPublished, ActionExpire, models.JobExpired},
	{models.JobPaused, ActionExpire, models.JobExpired},
}}

// Actions lists the actions offered for status, in declaration order.
func (w Workflow) Actions(status string) []Action {
	var actions []Action
	for _, t := range w.transitions {
		if t.From == status {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

func (w Workflow) Next(status string, action Action) (string, bool) {
	for _, t := range w.transitions {
		if t.From == status && t.Action == action {
			return t.To, true
		}
	}
	return "", false
}

// Statuses lists every status that appears in the workflow.
func (w Workflow) Statuses() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range w.transitions {
		for _, s := range []string{t.From, t.To} {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
