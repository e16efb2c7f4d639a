package market

import (
	"errors"

	"github.com/charlesC137/nft-smc/core"
)

// AllNFTs enumerates every materialized token in ascending id order. Two
// passes: first count the non-sentinel records among all issued ids, then
// fill exactly that many slots. Ownership is re-resolved from the
// authoritative ledger rather than the cached record field, so the view
// reflects state as of the call. Read-only.
func AllNFTs(st core.State) ([]*core.NFTView, error) {
	seq, err := st.NFTSeq()
	if err != nil {
		return nil, err
	}

	count := 0
	for id := uint64(1); id <= seq; id++ {
		_, err := st.GetNFT(id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		count++
	}

	out := make([]*core.NFTView, 0, count)
	for id := uint64(1); id <= seq; id++ {
		nft, err := st.GetNFT(id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		owner, err := st.GetOwner(id)
		if err != nil {
			return nil, err
		}
		out = append(out, &core.NFTView{NFT: *nft, Owner: owner})
	}
	return out, nil
}
