// Package emailauth provides passwordless, email-based authentication built on
// short-lived word codes drawn from the BIP-39 wordlists.
//
// The flow is the following:
//
//  1. A user wants to log in and provides their email.
//  2. A one-time verification code (a few random BIP-39 words) is generated and
//     emailed to them by [Service.SendVerificationCode].
//  3. The user copies the code from the email and submits it together with the
//     email to [Service.VerifyCode].
//  4. If the code matches within its TTL and attempt budget, a signed token is
//     issued for the user's identity.
//
// # Architecture boundaries
//
// emailauth is the public surface. It exposes [Service], [Builder], [Config], the
// storage contracts ([CodeStore], [UserStore]) and the external collaborator
// interfaces ([MailSender], [TokenIssuer]). Code generation lives in the mnemonic
// subpackage; the bundled token issuer lives in the jwt subpackage; the optional
// HTTP surface lives in httpapi.
//
// Storage is pluggable: the bundled [MemoryCodeStore]/[MemoryUserStore] suit
// tests and single-process deployments, [RedisCodeStore] and [MongoUserStore]
// suit shared deployments. Any implementation must provide per-key atomicity for
// Put, DecrementAttempts and GetOrCreate; everything else in the package is free
// of shared mutable state and safe for concurrent use after [Builder.Build].
//
// # What this package must NOT do
//
//   - Retry storage or mail-transport failures internally; they surface
//     immediately and retrying is the caller's concern.
//   - Disclose through errors whether a code ever existed for an email, or how
//     many attempts remain on one.
//   - Hold a lock across an I/O boundary between the code store and user store.
package emailauth
