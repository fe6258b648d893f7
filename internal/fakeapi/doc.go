// Package fakeapi runs an in-process stand-in for the RAG backend API.
//
// It serves the endpoints the CLI talks to (/auth/login, /auth/register,
// /auth/google, /users/me and /health/detailed) with the same status codes and
// error bodies as the real service, backed by an in-memory SQLite database.
// Tests script its behavior through the exported setters.
package fakeapi
