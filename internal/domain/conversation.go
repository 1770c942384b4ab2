package domain

// Part is one fragment of the content sent upstream.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob is inline binary data with its mime type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Content is one upstream turn.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

type DisplayKind string

const (
	DisplayText  DisplayKind = "text"
	DisplayImage DisplayKind = "image"
	DisplayVideo DisplayKind = "video"
	DisplayFile  DisplayKind = "file"
)

// DisplayPart is what the UI renders. Media is carried as a data URL, which
// is why it differs from Part.
type DisplayPart struct {
	Kind     DisplayKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	URL      string      `json:"url,omitempty"`
	FileName string      `json:"fileName,omitempty"`
	MIMEType string      `json:"mimeType,omitempty"`
}

// FunctionCall is an upstream function-call payload attached to a model turn.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Source is a grounding citation.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Message represents one turn of a session.
type Message struct {
	Role      Role          `json:"role"`
	Parts     []Part        `json:"parts"`
	Display   []DisplayPart `json:"display"`
	Timestamp Timestamp     `json:"timestamp"`

	// Transient flags set while a response is assembled or after it failed
	Error        bool          `json:"error,omitempty"`
	Generating   bool          `json:"generating,omitempty"`
	CreditError  bool          `json:"creditError,omitempty"`
	Progress     string        `json:"progress,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
	Sources      []Source      `json:"sources,omitempty"`
}

// DisplayText joins the text fragments of the display representation.
func (m Message) DisplayText() string {
	var out string
	for _, p := range m.Display {
		if p.Kind != DisplayText || p.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// Session represents one persisted conversation owned by a user.
type Session struct {
	ID        SessionID `json:"id"`
	UserID    UserID    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Clone copies the session and its message slice.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return &out
}

// User is the signed-in account. Only its ID partitions session storage.
type User struct {
	ID           UserID `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Provider     string `json:"provider,omitempty"` // "password" or a federated provider name
	Avatar       string `json:"avatar,omitempty"`
}
