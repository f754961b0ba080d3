package repo

import perr "rollcall/internal/platform/errors"

// errMemberGone is returned when an update matched no row, usually because the
// member was deleted between validation and persistence
var errMemberGone = perr.New(perr.ErrorCodeNotFound, "member no longer exists")
