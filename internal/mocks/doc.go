// Package mocks provides shared test doubles for the account service's
// collaborators.
//
// Store, token, sender and emitter mocks embed testify's mock.Mock and are
// configured with On(...).Return(...). MockPasswordHasher uses function
// fields with a deterministic default so tests can assert on stored hashes
// without running bcrypt.
//
//	users := new(mocks.MockUserStore)
//	users.On("GetByID", mock.Anything, id).Return(user, nil)
//
// Store mocks return themselves from WithTx, so expectations set up front
// also apply inside a transaction.
package mocks
