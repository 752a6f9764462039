package agent

// Intents returned by the classifier.
const (
	IntentChat    = "chat"
	IntentProject = "project"
	IntentTask    = "task"
)

type ChatRequest struct {
	Message     string           `json:"message"`
	FileContent string           `json:"file_content"`
	History     []map[string]any `json:"history"`
}

type ChatResponse struct {
	Status      string       `json:"status"`
	Intent      string       `json:"intent"`
	Reply       string       `json:"reply"`
	Message     string       `json:"message"`
	TaskData    *TaskData    `json:"task_data"`
	ProjectData *ProjectData `json:"project_data"`
}

// TaskData carries either a batch under Tasks or a single task inline.
type TaskData struct {
	Tasks []TaskSpec `json:"tasks"`
	TaskSpec
}

// Specs returns the batch, or the inline task when it has a name.
func (d *TaskData) Specs() []TaskSpec {
	if d == nil {
		return nil
	}
	if len(d.Tasks) > 0 {
		return d.Tasks
	}
	if d.TaskSpec.Title() != "" {
		return []TaskSpec{d.TaskSpec}
	}
	return nil
}

type TaskSpec struct {
	Name        string `json:"name"`
	TitleField  string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Deadline    string `json:"deadline"`
	ProjectName string `json:"project_name"`
}

func (s TaskSpec) Title() string {
	if s.Name != "" {
		return s.Name
	}
	return s.TitleField
}

type ProjectData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

type AnalyzeRequest struct {
	Description string `json:"description"`
}

type AnalyzeResponse struct {
	Insight       string   `json:"insight"`
	SuggestedTags []string `json:"suggested_tags"`
	Sentiment     string   `json:"sentiment"`
}
