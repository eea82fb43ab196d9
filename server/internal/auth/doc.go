// Package auth resolves the identity of a connecting client.
//
// New(cfg, defaultChannel) returns a Resolver for the configured mode:
//
//   - "none" (default): QueryResolver trusts the sender and channel query
//     parameters as given. An absent sender becomes "anonymous" and an absent
//     channel becomes the default channel; a parameter that is present but
//     empty is kept as the empty string.
//   - "jwt": TokenResolver requires an HS256 token in the token query
//     parameter or an Authorization: Bearer header. The sender comes from the
//     token's sender claim (falling back to sub), never from the query. An
//     optional channels claim limits which channels may be joined.
//
// Resolve errors wrap ErrUnauthenticated or ErrForbidden; the ws hub maps
// them to 401 and 403 before upgrading.
package auth
