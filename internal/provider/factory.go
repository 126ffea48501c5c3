package provider

// OpenAIFactory constructs OpenAIProvider instances bound to one endpoint
// and credential, varying only by the model id passed to Create.
type OpenAIFactory struct {
	name     string
	endpoint string
	apiKey   string
}

func NewOpenAIFactory(name, endpoint, apiKey string) *OpenAIFactory {
	return &OpenAIFactory{name: name, endpoint: endpoint, apiKey: apiKey}
}

func (f *OpenAIFactory) Name() string { return f.name }

func (f *OpenAIFactory) Create(model string, opts Options) Provider {
	return NewOpenAI(f.name, f.endpoint, f.apiKey, model, opts)
}
