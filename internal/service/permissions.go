package service

// Permission names gating the admin surface. A user passes a gate when
// the legacy admin flag is set or the graph grants the named permission.
const (
	PermManagePosts    = "posts:manage"
	PermManageTaxonomy = "taxonomy:manage"
	PermManageAccess   = "access:manage"
	PermManageUsers    = "users:manage"
	PermUpload         = "uploads:create"
)
