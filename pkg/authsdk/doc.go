/*
Package authsdk is a small client for the tokenguard HTTP API.

	client := authsdk.NewSDKClient("https://auth.example.com")

	tokens, err := client.Login(ctx, "api", authsdk.LoginRequest{
		"email":    "a@x.com",
		"password": "secret",
	})

	me, err := client.Me(ctx, "api", tokens.AccessToken)
	next, err := client.Refresh(ctx, "api", tokens.RefreshToken)
	_, err = client.Logout(ctx, "api", next.AccessToken)

A Session wraps a token pair and refreshes the access token 30 seconds before
it expires:

	session, err := client.AuthenticateWithPassword(ctx, "api", creds)
	me, err := session.Me(ctx)
	err = session.Logout(ctx)

Failed calls return *APIError carrying the HTTP status and the error code
written by the server (for example "expired_token" or "blacklisted_token").
*/
package authsdk
