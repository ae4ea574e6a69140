package remote

import (
	_ "go.uber.org/mock/gomock"
)

//go:generate mockgen -package mocks -destination mocks/mock_remote.go github.com/kasuboski/showsync/pkg/remote Session,Connector
