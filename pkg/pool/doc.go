// Package pool hands out database connections one request at a time.
//
// A checkout pins a single connection from the gorm-managed database/sql
// pool until it is released:
//
//	res, err := p.Checkout(ctx)
//	if err != nil {
//	    // errors.Is(err, pool.ErrExhausted) when no connection freed up
//	    // within the checkout timeout
//	}
//	defer res.Release()
//
//	var user model.User
//	err = res.DB().Where("login = ?", login).First(&user).Error
//
// Pool limits come from the pool_* configuration attributes and can be
// changed on a running pool with Apply.
package pool
