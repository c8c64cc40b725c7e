// Package service contains the account lifecycle use cases. It orchestrates
// the user, account and address stores together with the password hasher,
// token service and mail sender to register users, verify email addresses,
// reset passwords and manage roles.
//
// The service layer depends on domain entities and store interfaces, never on
// a specific infrastructure implementation. Collaborators are passed in
// through AccountServiceDeps.
//
// Error Handling:
//   - Every AccountService method returns *AppError on failure
//   - AppError.Kind classifies the failure as a bad request, not found, or
//     server error, and maps to an HTTP status via StatusCode
//   - AppError.PublicMessage is safe to show to end users; Message and the
//     wrapped cause are for logs only
//
// Registration runs inside a single database transaction; lifecycle events
// are published only after the operation has succeeded.
package service
