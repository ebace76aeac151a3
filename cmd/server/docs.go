// Package main projecthub API
//
//	@title						projecthub API
//	@version					1.0
//	@description				Project and task tracking with live change notifications.
//
//	@BasePath					/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"
//
//	@tag.name					Projects
//	@tag.description			Projects, teams and analytics
//
//	@tag.name					Tasks
//	@tag.description			Tasks and comments
//
//	@tag.name					Users
//	@tag.description			User directory
package main
