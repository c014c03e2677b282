/*
Package api defines the PUBLIC surface the UI layer programs against.
Everything behind it (cache tiers, freshness, connectivity, single-flight registration)
is hidden; the UI only sees typed results and the error kinds of the cache package.
*/
package api

import (
	"context"
	"time"

	"github.com/campusapp/schedule-cache/registration"
	"github.com/campusapp/schedule-cache/schedsync"
	"github.com/campusapp/schedule-cache/schedule"
)

// Schedule is what screens showing timetables use.
type Schedule interface {

	/*
		GetDay returns the sessions of one date.

		BEHAVIOR:
		-------------------
		1. A fresh saved copy is returned without touching the network
		   (unless forceRefresh is set)
		2. Otherwise the date is fetched, normalized and saved
		3. If the fetch fails, any saved copy is returned with Origin = fallback

		ERRORS:
		-------
		- cache.ErrAuthRequired    : nobody is logged in
		- cache.ErrSessionExpired  : the server no longer accepts the login
		- cache.ErrNoNetworkNoCache: offline and nothing saved
		- cache.ErrFetchFailed     : online, fetch failed, nothing saved
	*/
	GetDay(ctx context.Context, date schedule.DateKey, forceRefresh bool) (schedsync.DayResult, error)

	/*
		GetWeek returns the best available schedule of the week containing ref.

		BEHAVIOR:
		---------
		- Days are fetched one after another, oldest first
		- A failed day falls back to its saved copy and is listed as degraded
		- Partial data is returned even when the session expired midway,
		  together with cache.ErrSessionExpired

		IMPORTANT:
		----------
		- Only a week with no data at all is an error (cache.ErrNoDataAvailable)
	*/
	GetWeek(ctx context.Context, ref time.Time, forceRefresh bool) (schedsync.WeekResult, error)

	/*
		GetCourseInfoForGroup returns the course info of a study group.
		An unknown group is a result with Found = false, not an error.
	*/
	GetCourseInfoForGroup(ctx context.Context, group string, forceRefresh bool) (schedsync.CourseResult, error)

	/*
		ClearCache drops every saved schedule.

		WHEN TO CALL:
		-------------
		- Logout
		- Switching to another user
	*/
	ClearCache(ctx context.Context)
}

// Registrar is what the login flow and the settings screen use.
type Registrar interface {

	/*
		CredentialAvailable registers this device for the logged in user.
		Safe to call from every screen that notices a login: at most one registration
		per user is sent, concurrent callers share its result.
	*/
	CredentialAvailable(ctx context.Context) (registration.Outcome, error)

	// Logout forgets the registration of identity.
	Logout(identity string)

	// SendTestNotification asks the backend to push a test message.
	SendTestNotification(ctx context.Context) (registration.Notification, error)
}

var (
	_ Schedule  = (*schedsync.Client)(nil)
	_ Registrar = (*registration.DeviceRegistrar)(nil)
)
