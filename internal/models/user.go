package models

// UserProfile is the identity-service view of a customer. The core only
// reads it to decide whether the payment screen may proceed; the artifacts
// themselves are owned by the identity service.
type UserProfile struct {
	ID                      string `json:"id"`
	FullName                string `json:"fullName"`
	Email                   string `json:"email,omitempty"`
	Role                    string `json:"role,omitempty"`
	FacePhotoURL            string `json:"facePhotoUrl,omitempty"`
	CitizenIdentificationID string `json:"citizenIdentificationId,omitempty"`
}

// HasFacePhoto reports whether a face capture artifact is on file.
func (u *UserProfile) HasFacePhoto() bool {
	return u != nil && u.FacePhotoURL != ""
}

// HasCitizenIdentification reports whether a citizen id artifact is on file.
func (u *UserProfile) HasCitizenIdentification() bool {
	return u != nil && u.CitizenIdentificationID != ""
}

// Roles carried in the auth token. Approval and check-in/out actions are
// restricted to staff and managers.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// IsStaffRole reports whether the role may act on the approval gate.
func IsStaffRole(role string) bool {
	switch role {
	case RoleStaff, RoleManager, RoleAdmin:
		return true
	}
	return false
}
