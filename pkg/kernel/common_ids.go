package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type ApplicationID string

func NewApplicationID(id string) ApplicationID { return ApplicationID(id) }
func (a ApplicationID) String() string         { return string(a) }
func (a ApplicationID) IsEmpty() bool          { return string(a) == "" }

type GroupID string

func NewGroupID(id string) GroupID { return GroupID(id) }
func (g GroupID) String() string   { return string(g) }
func (g GroupID) IsEmpty() bool    { return string(g) == "" }

type PolicyID string

func NewPolicyID(id string) PolicyID { return PolicyID(id) }
func (p PolicyID) String() string    { return string(p) }
func (p PolicyID) IsEmpty() bool     { return string(p) == "" }
