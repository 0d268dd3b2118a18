package response

// Copy is the default text of every handler branch. Any field can be
// replaced per bot; templates registered for an intent take precedence.
type Copy struct {
	GreetingFormal  string   `json:"greetingFormal" yaml:"greetingFormal"`
	GreetingCasual  string   `json:"greetingCasual" yaml:"greetingCasual"`
	Farewell        string   `json:"farewell" yaml:"farewell"`
	Thanks          string   `json:"thanks" yaml:"thanks"`
	Help            string   `json:"help" yaml:"help"`
	NoAnswer        string   `json:"noAnswer" yaml:"noAnswer"`
	CommandUnknown  string   `json:"commandUnknown" yaml:"commandUnknown"`
	CommandDone     string   `json:"commandDone" yaml:"commandDone"`
	CommandFailed   string   `json:"commandFailed" yaml:"commandFailed"`
	Statement       string   `json:"statement" yaml:"statement"`
	Confirm         string   `json:"confirm" yaml:"confirm"`
	Decline         string   `json:"decline" yaml:"decline"`
	Empathy         string   `json:"empathy" yaml:"empathy"`
	AlsoDone        string   `json:"alsoDone" yaml:"alsoDone"`
	GreetingReplies []string `json:"greetingReplies" yaml:"greetingReplies"`
	HelpReplies     []string `json:"helpReplies" yaml:"helpReplies"`
	Fallbacks       []string `json:"fallbacks" yaml:"fallbacks"`
}

func DefaultCopy() Copy {
	return Copy{
		GreetingFormal: "Hello! How may I assist you today?",
		GreetingCasual: "Hi there! How can I help you today?",
		Farewell:       "Goodbye! Have a great day.",
		Thanks:         "You're welcome! Is there anything else I can help you with?",
		Help:           "I can answer questions, look things up for you, and take care of tasks like bookings, reminders and support tickets. What do you need?",
		NoAnswer:       "I don't have an answer for that yet. Could you tell me a bit more about what you're looking for?",
		CommandUnknown: "I'm not able to do that yet. Could you rephrase the request?",
		CommandDone:    "Done! I've taken care of that for you.",
		CommandFailed:  "Sorry, I couldn't complete that request right now.",
		Statement:      "Thanks for sharing that. Tell me more.",
		Confirm:        "Great, let's go ahead.",
		Decline:        "No problem. Is there something else I can help with?",
		Empathy:        "I'm sorry to hear that.",
		AlsoDone:       "I've also taken care of:",
		GreetingReplies: []string{
			"What can you do?",
			"Talk to a person",
			"Check my order",
		},
		HelpReplies: []string{
			"Ask a question",
			"Book an appointment",
			"Set a reminder",
		},
		Fallbacks: []string{
			"I'm not sure I understood that. Could you rephrase?",
			"Could you tell me a bit more about what you need?",
			"I didn't quite catch that. Can you say it another way?",
			"Let me make sure I help with the right thing. What would you like to do?",
		},
	}
}
