package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Gold Signal API
// @version         0.1.0
// @description     Gold futures trading signals, trade tracking, and performance gating.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
