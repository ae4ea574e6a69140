package library

import (
	_ "go.uber.org/mock/gomock"
)

//go:generate mockgen -package mocks -destination mocks/mock_library.go github.com/kasuboski/showsync/pkg/library Library
