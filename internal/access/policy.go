package access

import (
	"fmt"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/models"
)

// Transition names an operation on an access record.
type Transition string

// Supported transitions.
const (
	TransitionRequest    Transition = "request"
	TransitionGrant      Transition = "grant"
	TransitionSuspend    Transition = "suspend"
	TransitionRevoke     Transition = "delete"
	TransitionUpdateRole Transition = "update_role"
)

// StatusNone stands for "no record exists" on the left side of a transition.
const StatusNone models.AccessStatus = ""

// Actor is the authenticated caller of an access operation.
type Actor struct {
	UserID string
	Role   models.Role // global role
}

// IsGlobalAdmin reports whether the actor administers every restaurant.
func (a Actor) IsGlobalAdmin() bool {
	return a.Role.AtLeast(models.RoleAdmin)
}

// Relation is what the policy needs to know about the actor relative to a record.
type Relation struct {
	Manager   bool // owner, global admin, or approved admin on the restaurant
	Requester bool // the record's own user
	Root      bool // global root
}

// Relate derives the actor's relation to a restaurant and (optionally) a record.
// actorGrant is the actor's own approved record on that restaurant, if any.
func Relate(actor Actor, restaurant models.Restaurant, record *models.RestaurantAccess, actorGrant *models.RestaurantAccess) Relation {
	rel := Relation{Root: actor.Role == models.RoleRoot}
	switch {
	case actor.IsGlobalAdmin():
		rel.Manager = true
	case actor.UserID != "" && actor.UserID == restaurant.OwnerID:
		rel.Manager = true
	case actorGrant != nil && actorGrant.Status == models.AccessStatusApproved && actorGrant.Role.AtLeast(models.RoleAdmin):
		rel.Manager = true
	}
	if record != nil && actor.UserID != "" && record.UserID == actor.UserID {
		rel.Requester = true
	}
	return rel
}

var legalFrom = map[Transition][]models.AccessStatus{
	TransitionRequest:    {StatusNone, models.AccessStatusInactive},
	TransitionGrant:      {models.AccessStatusPending, models.AccessStatusSuspended},
	TransitionSuspend:    {models.AccessStatusApproved},
	TransitionRevoke:     {models.AccessStatusPending, models.AccessStatusApproved, models.AccessStatusSuspended},
	TransitionUpdateRole: {models.AccessStatusApproved},
}

// Evaluate decides the next status for a transition. Authorization is checked
// before state so unauthorized callers learn nothing about the record.
func Evaluate(current models.AccessStatus, t Transition, rel Relation) (models.AccessStatus, error) {
	from, ok := legalFrom[t]
	if !ok {
		return current, apierror.Validation(fmt.Sprintf("unknown transition %q", string(t)), nil)
	}
	if current != StatusNone && !current.Valid() {
		return current, apierror.Internal("corrupt access status", fmt.Errorf("status %q", string(current)))
	}
	if !authorized(current, t, rel) {
		return current, apierror.Authorization(fmt.Sprintf("not allowed to %s this access", describe(t)))
	}
	if !contains(from, current) {
		return current, apierror.Conflict(fmt.Sprintf("cannot %s access: record is %s, requires %s", describe(t), describeStatus(current), joinStatuses(from)))
	}
	switch t {
	case TransitionRequest:
		return models.AccessStatusPending, nil
	case TransitionGrant:
		return models.AccessStatusApproved, nil
	case TransitionSuspend:
		return models.AccessStatusSuspended, nil
	case TransitionRevoke:
		return models.AccessStatusInactive, nil
	default:
		return current, nil
	}
}

func authorized(current models.AccessStatus, t Transition, rel Relation) bool {
	switch t {
	case TransitionRequest:
		return rel.Requester || rel.Manager
	case TransitionRevoke:
		if rel.Manager {
			return true
		}
		return rel.Requester && current == models.AccessStatusPending
	default:
		return rel.Manager
	}
}

// CheckAssignableRole validates a role an actor wants to hand out.
func CheckAssignableRole(role models.Role, rel Relation) error {
	if !role.Valid() {
		return apierror.Validation(fmt.Sprintf("unknown role %q", string(role)), map[string]string{"role": "oneof guest user moderator admin root"})
	}
	if role == models.RoleRoot && !rel.Root {
		return apierror.Authorization("only root may assign the root role")
	}
	return nil
}

func contains(list []models.AccessStatus, s models.AccessStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func describe(t Transition) string {
	if t == TransitionUpdateRole {
		return "update the role of"
	}
	return string(t)
}

func describeStatus(s models.AccessStatus) string {
	if s == StatusNone {
		return "absent"
	}
	return string(s)
}

func joinStatuses(list []models.AccessStatus) string {
	parts := make([]string, 0, len(list))
	for _, s := range list {
		parts = append(parts, describeStatus(s))
	}
	return strings.Join(parts, " or ")
}
