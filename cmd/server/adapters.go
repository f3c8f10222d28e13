package main

import (
	"context"

	didservice "civicid/internal/did/service"
	linkservice "civicid/internal/linking/service"
	"civicid/pkg/domain"
)

// didDirectory exposes the PRISM DID store to the credential service.
type didDirectory struct {
	store didservice.Store
}

func (d didDirectory) FindDID(ctx context.Context, userID domain.UserID) (domain.DID, error) {
	rec, err := d.store.FindByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return rec.DID, nil
}

// walletLinks exposes linked wallet DIDs to the credential service.
type walletLinks struct {
	store linkservice.LinkStore
}

func (w walletLinks) LinkedDID(ctx context.Context, userID domain.UserID) (domain.DID, error) {
	link, err := w.store.FindByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return link.DID, nil
}
