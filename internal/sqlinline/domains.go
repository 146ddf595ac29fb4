package sqlinline

const QUpsertDomain = `--sql d0a97fdf-55cc-45a2-8c0d-7f37fa8737c5
insert into domains (id, project_id, domain_name, registrar, status,
                     purchase_price_cents, renewal_price_cents, renewal_date)
values ($1, $2, $3, $4, $5, $6, $7, $8)
on conflict (domain_name) do update
set project_id = excluded.project_id,
    status = excluded.status,
    purchase_price_cents = excluded.purchase_price_cents,
    renewal_price_cents = excluded.renewal_price_cents,
    renewal_date = excluded.renewal_date;
`

const QGetDomainByName = `--sql 6cdddcaf-3bb7-41e1-84f0-954658bb7a5c
select id, project_id, domain_name, registrar, status,
       purchase_price_cents, renewal_price_cents, renewal_date
from domains
where domain_name = $1;
`

const QUpdateDomainStatus = `--sql 883d4688-2996-4774-b6c2-7449894903e5
update domains
set status = $2
where domain_name = $1;
`

const QDomainsDueForRenewal = `--sql 859bebd6-c4c6-4280-9e36-7a84b9ed9356
select id, project_id, domain_name, registrar, status,
       purchase_price_cents, renewal_price_cents, renewal_date
from domains
where status = 'active'
  and renewal_date is not null
  and renewal_date <= now() + $1::interval
order by renewal_date asc;
`

const QAdvanceDomainRenewal = `--sql fd312cbf-c37b-479e-a763-8d7b407fb3a3
update domains
set renewal_date = renewal_date + interval '1 year'
where domain_name = $1;
`
