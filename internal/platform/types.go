package platform

// Visibility of a reel within the platform tenant model.
const (
	VisibilityTenant   = "tenant"
	VisibilityPublic   = "public"
	VisibilityInternal = "internal"
)

// Access levels granted by a reel's permission descriptor.
const (
	AccessView  = "view"
	AccessEdit  = "edit"
	AccessAdmin = "admin"
)

// Reprocess job statuses. The state machine is strictly forward-moving:
// pending -> processing -> completed|failed.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ReelPermissions is the permission descriptor attached to a reel.
type ReelPermissions struct {
	Visibility  string   `json:"visibility"`
	AccessLevel string   `json:"accessLevel"`
	UserRoles   []string `json:"userRoles"`
}

// ReelMetadata is the current metadata snapshot of a reel. CurrentVersion
// always equals the version number of the most recently applied version;
// it is assigned by the platform and never computed locally.
type ReelMetadata struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Tags           []string        `json:"tags"`
	Category       string          `json:"category"`
	MachineModel   string          `json:"machineModel"`
	Tooling        string          `json:"tooling"`
	ProcessStep    string          `json:"processStep"`
	SkillLevel     string          `json:"skillLevel"`
	Language       string          `json:"language"`
	CustomerScope  string          `json:"customerScope"`
	CurrentVersion int             `json:"currentVersion"`
	Permissions    ReelPermissions `json:"permissions"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
}

// MetadataDelta is a partial metadata update submitted on commit. Nil
// fields are left untouched by the platform.
type MetadataDelta struct {
	Title         *string  `json:"title,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Category      *string  `json:"category,omitempty"`
	MachineModel  *string  `json:"machineModel,omitempty"`
	Tooling       *string  `json:"tooling,omitempty"`
	ProcessStep   *string  `json:"processStep,omitempty"`
	SkillLevel    *string  `json:"skillLevel,omitempty"`
	Language      *string  `json:"language,omitempty"`
	CustomerScope *string  `json:"customerScope,omitempty"`
	ChangeLog     string   `json:"changeLog,omitempty"`
}

// ReelVersion is one immutable entry of a reel's version history. Version
// numbers are unique per reel and strictly increasing; the history is
// append-only and never reordered.
type ReelVersion struct {
	ID            string       `json:"id"`
	VideoID       string       `json:"videoId"`
	VersionNumber int          `json:"versionNumber"`
	ChangeLog     string       `json:"changeLog"`
	CreatedAt     string       `json:"createdAt"`
	ModifiedBy    string       `json:"modifiedBy"`
	Metadata      ReelMetadata `json:"metadata"`
}

// TranscriptSegment is one time-bounded span of transcript text.
type TranscriptSegment struct {
	ID         string  `json:"id"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the segment sequence owned by exactly one reel. Its
// version counter is independent of the reel's metadata version and is
// bumped by the platform on save.
type Transcript struct {
	ID        string              `json:"id"`
	VideoID   string              `json:"videoId"`
	Segments  []TranscriptSegment `json:"segments"`
	Version   int                 `json:"version"`
	CreatedAt string              `json:"createdAt"`
	UpdatedAt string              `json:"updatedAt"`
}

// ReprocessJob is the status of an asynchronous reprocessing job. It is
// ephemeral client-side; the agent never persists it beyond the session.
type ReprocessJob struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j *ReprocessJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
