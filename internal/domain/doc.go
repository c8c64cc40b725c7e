// Package domain contains the storefront's account entities: users, their
// login accounts and the addresses attached to them. It is independent of
// any storage or delivery mechanism.
package domain
