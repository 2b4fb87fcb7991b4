// Package hearthside provides a Go client for the Hearthside community
// platform API: posts, comments, users, events, courses, podcasts,
// communities, payments, gamification and notifications.
//
// The client resolves the API base URL, authenticates with a bearer token
// that it refreshes once when the server rejects it, retries idempotent
// requests after transient failures and shares identical in-flight GET
// requests.
//
// Basic usage:
//
//	client, err := hearthside.New(hearthside.WithBaseURL("https://example.com/api"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Login(ctx, "ada@example.com", "secret"); err != nil {
//	    log.Fatal(hearthside.UserMessage(err))
//	}
//
//	var posts []Post
//	page, err := client.Posts.List(ctx, hearthside.ListOptions{Page: 1}, &posts)
//
// Errors can be matched with errors.Is against the Err* sentinels. A request
// that failed because the session could not be recovered matches
// ErrReauthRequired; the session has then been cleared.
package hearthside
