package sqlinline

const QInsertProject = `--sql 13581e46-f620-4aaf-97dd-cf680e872636
insert into projects (id, user_id, name, slug, plan, status, pending_domain)
values ($1, $2, $3, $4, $5, 'creating', $6);
`

const QGetProject = `--sql cd038f7e-e726-4a37-aa0b-2d9dca973f2e
select id, user_id, name, slug, plan, status,
       coalesce(github_repo_id, ''), coalesce(vercel_project_id, ''),
       coalesce(primary_url, ''), coalesce(pending_domain, ''), created_at
from projects
where id = $1;
`

const QGetProjectBySlug = `--sql ea22ba21-2e04-4922-9ec4-600a5bb30efe
select id, user_id, name, slug, plan, status,
       coalesce(github_repo_id, ''), coalesce(vercel_project_id, ''),
       coalesce(primary_url, ''), coalesce(pending_domain, ''), created_at
from projects
where slug = $1;
`

// QPatchProject persists progressively acquired provisioning references.
const QPatchProject = `--sql 003b0daa-3ea7-410b-98f4-33912e240014
update projects
set github_repo_id    = coalesce($2, github_repo_id),
    vercel_project_id = coalesce($3, vercel_project_id),
    primary_url       = coalesce($4, primary_url),
    pending_domain    = coalesce($5, pending_domain)
where id = $1;
`

const QUpdateProjectStatus = `--sql 008f4c24-df99-4e23-8aab-f06ad711fbf0
update projects
set status = $2
where id = $1;
`

// Advisory lock keyed on the project id. Session scoped: the caller must pin
// a connection for the lock's lifetime.
const QTryProjectLock = `--sql 78f1235c-c2b0-4722-81c7-55a009310fd3
select pg_try_advisory_lock(hashtextextended($1, 7421));
`

const QUnlockProject = `--sql bcc774ba-59c3-4274-b236-c3f14edcc47c
select pg_advisory_unlock(hashtextextended($1, 7421));
`
