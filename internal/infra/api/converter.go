package api

import (
	"fmt"

	"shiftsync/internal/domain/request"

	"github.com/jinzhu/copier"
)

// ToDomain maps a wire request onto the domain entity. Anything the server
// hands back is authoritative, so the origin is forced to server here and
// nowhere else.
func ToDomain(dto RequestDTO) (request.Request, error) {
	var req request.Request
	if err := copier.Copy(&req, &dto); err != nil {
		return request.Request{}, fmt.Errorf("failed to convert request dto: %w", err)
	}
	req.Origin = request.OriginServer
	return req, nil
}

func ToDomainList(dtos []RequestDTO) ([]request.Request, error) {
	out := make([]request.Request, 0, len(dtos))
	for _, dto := range dtos {
		req, err := ToDomain(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
